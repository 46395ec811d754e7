package upscaledb

// DeviceFlags is a capability bitmask reported by a Device.
type DeviceFlags uint32

const (
	// DeviceEnableCRC32 tells the page cache to stamp/verify a CRC32
	// (MurmurHash3 x86-32) on header-bearing pages during flush/fetch.
	DeviceEnableCRC32 DeviceFlags = 1 << iota
	// DeviceReadOnly marks the backing store as immutable; Write and
	// AllocPage must fail.
	DeviceReadOnly
)

// Device is the (alloc_page, read_page, write) capability the core
// consumes. It hides whether the backing store is a real file or an
// in-memory buffer.
type Device interface {
	// PageSize returns the fixed page size this device was configured
	// with.
	PageSize() uint32
	// Flags reports this device's capability bitmask.
	Flags() DeviceFlags
	// AllocPage assigns p a fresh address by extending the backing
	// store. Fails when the device cannot extend (e.g. read-only).
	AllocPage(p *Page) error
	// ReadPage populates p's buffer from the backing store at address.
	ReadPage(p *Page, address uint64) error
	// Write persists data at address.
	Write(address uint64, data []byte) error
	// Close releases any resources the device holds.
	Close() error
}
