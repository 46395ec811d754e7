package upscaledb

// memDevice is a byte-slice backed Device for pure in-memory databases
// and for tests that don't want file-descriptor lifecycle.
type memDevice struct {
	pageSize uint32
	flags    DeviceFlags
	store    [][]byte // index i holds the bytes for address i*pageSize
}

// NewMemDevice returns a Device backed entirely by process memory.
func NewMemDevice(pageSize uint32, flags DeviceFlags) Device {
	return &memDevice{pageSize: pageSize, flags: flags}
}

func (d *memDevice) PageSize() uint32   { return d.pageSize }
func (d *memDevice) Flags() DeviceFlags { return d.flags }

func (d *memDevice) AllocPage(p *Page) error {
	if d.flags&DeviceReadOnly != 0 {
		return newErr(ErrIo, "device: read-only, cannot allocate")
	}
	idx := len(d.store)
	d.store = append(d.store, make([]byte, d.pageSize))
	p.address = uint64(idx) * uint64(d.pageSize)
	return nil
}

func (d *memDevice) ReadPage(p *Page, address uint64) error {
	idx := address / uint64(d.pageSize)
	if idx >= uint64(len(d.store)) {
		return newErr(ErrIo, "device: read past end of store")
	}
	buf := p.mutableBuffer()
	copy(buf, d.store[idx])
	p.address = address
	return nil
}

func (d *memDevice) Write(address uint64, data []byte) error {
	if d.flags&DeviceReadOnly != 0 {
		return newErr(ErrIo, "device: read-only, cannot write")
	}
	idx := address / uint64(d.pageSize)
	if idx >= uint64(len(d.store)) {
		return newErr(ErrIo, "device: write past end of store")
	}
	copy(d.store[idx], data)
	return nil
}

func (d *memDevice) Close() error { return nil }
