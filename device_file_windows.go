//go:build windows

package upscaledb

import "os"

// fileDevice is a real file backed Device. Windows has no Pread/Pwrite
// equivalent exposed via golang.org/x/sys in the form unix builds use,
// so this variant falls back to os.File's positioned ReadAt/WriteAt,
// which take an internal lock per call but need no shared cursor
// either.
type fileDevice struct {
	f        *os.File
	pageSize uint32
	flags    DeviceFlags
	nextAddr uint64
}

// OpenFileDevice opens (creating if necessary) a page-aligned file
// device at path.
func OpenFileDevice(path string, pageSize uint32, flags DeviceFlags) (Device, error) {
	openFlags := os.O_RDWR | os.O_CREATE
	if flags&DeviceReadOnly != 0 {
		openFlags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, openFlags, 0644)
	if err != nil {
		return nil, wrapErr(ErrIo, "device: open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapErr(ErrIo, "device: stat", err)
	}
	return &fileDevice{f: f, pageSize: pageSize, flags: flags, nextAddr: uint64(fi.Size())}, nil
}

func (d *fileDevice) PageSize() uint32   { return d.pageSize }
func (d *fileDevice) Flags() DeviceFlags { return d.flags }

func (d *fileDevice) AllocPage(p *Page) error {
	if d.flags&DeviceReadOnly != 0 {
		return newErr(ErrIo, "device: read-only, cannot allocate")
	}
	addr := d.nextAddr
	d.nextAddr += uint64(d.pageSize)
	p.address = addr
	return nil
}

func (d *fileDevice) ReadPage(p *Page, address uint64) error {
	buf := p.mutableBuffer()
	n, err := d.f.ReadAt(buf, int64(address))
	if err != nil {
		return wrapErr(ErrIo, "device: readat", err)
	}
	if n != len(buf) {
		return newErr(ErrIo, "device: short read")
	}
	p.address = address
	return nil
}

func (d *fileDevice) Write(address uint64, data []byte) error {
	if d.flags&DeviceReadOnly != 0 {
		return newErr(ErrIo, "device: read-only, cannot write")
	}
	n, err := d.f.WriteAt(data, int64(address))
	if err != nil {
		return wrapErr(ErrIo, "device: writeat", err)
	}
	if n != len(data) {
		return newErr(ErrIo, "device: short write")
	}
	return nil
}

func (d *fileDevice) Close() error {
	return d.f.Close()
}
