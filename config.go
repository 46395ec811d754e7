package upscaledb

// Config configures a Database at Create/Open time, mirroring the
// small options struct a caller fills in and hands to the
// environment/database constructor rather than a functional-options
// chain.
type Config struct {
	// PageSize is the fixed page size in bytes. Defaults to 4096.
	PageSize uint32
	// KeySize is the maximum inline key size per node; keys longer
	// than this overflow into an extended blob. Defaults to 32.
	KeySize uint16
	// CacheSize is the maximum number of pages held in the page
	// cache. Defaults to 256.
	CacheSize int
	// EnableCRC32 turns on CRC32 stamping/verification of
	// header-bearing pages on flush/fetch.
	EnableCRC32 bool
	// Compare is the user-supplied key comparator. Nil selects
	// DefaultCompare (byte-lexicographic).
	Compare CompareFunc
	// Compressor is the compression strategy held by the Database. Nil
	// selects NoopCompressor. The btree, page cache and blob store do
	// not call it; records and blobs are stored uncompressed.
	Compressor Compressor
}

// DefaultConfig returns the configuration used when the caller doesn't
// need anything unusual.
func DefaultConfig() Config {
	return Config{
		PageSize:  4096,
		KeySize:   32,
		CacheSize: 256,
	}
}

func (c Config) deviceFlags() DeviceFlags {
	var f DeviceFlags
	if c.EnableCRC32 {
		f |= DeviceEnableCRC32
	}
	return f
}
