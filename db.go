package upscaledb

import "encoding/binary"

// metaMagic identifies a valid meta page.
const metaMagic = 0x75706462 // "updb"

// Stats holds counters a caller can inspect for observability, in
// place of any logging from the core (see design notes: the core does
// not log, matching the teacher's own silent storage layer). Splits,
// Merges, Shifts, CacheHits and CacheMisses are counted; PagesRead and
// PagesWritten are not updated and stay zero.
type Stats struct {
	PagesRead    uint64
	PagesWritten uint64
	Splits       uint64
	Merges       uint64
	Shifts       uint64
	CacheHits    uint64
	CacheMisses  uint64
}

// Database is the single-threaded, cooperative handle onto one
// B+tree-backed key/value store. A Database must not be used
// concurrently from multiple goroutines; multiple Databases over
// distinct devices may proceed independently.
type Database struct {
	device   Device
	cache    *pageCache
	cmp      *comparator
	blobs    BlobStore
	extkeys  *extKeyCache
	dups     *dupStore
	compress Compressor
	pageSize uint32
	keySize  uint16
	crc      bool

	meta *Page
	tree *Btree

	Stats Stats
}

// Create initializes a new database file at path (or, if path is
// empty, a pure in-memory database) with the given configuration.
func Create(path string, cfg Config) (*Database, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = 4096
	}
	if cfg.KeySize == 0 {
		cfg.KeySize = 32
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}

	var dev Device
	var err error
	if path == "" {
		dev = NewMemDevice(cfg.PageSize, cfg.deviceFlags())
	} else {
		dev, err = OpenFileDevice(path, cfg.PageSize, cfg.deviceFlags())
		if err != nil {
			return nil, err
		}
	}

	db := &Database{
		device:   dev,
		cmp:      newComparator(cfg.Compare),
		blobs:    newMemBlobStore(),
		extkeys:  newExtKeyCache(),
		dups:     newDupStore(),
		compress: cfg.Compressor,
		pageSize: cfg.PageSize,
		keySize:  cfg.KeySize,
		crc:      cfg.EnableCRC32,
	}
	if db.compress == nil {
		db.compress = NoopCompressor{}
	}
	db.cache = newPageCache(db, cfg.CacheSize, &db.Stats)

	meta := newPage(db, cfg.PageSize, true)
	if err := meta.alloc(dev, true); err != nil {
		return nil, err
	}
	if meta.address != 0 {
		return nil, newErr(ErrCorruption, "db: meta page did not land at address 0")
	}
	binary.LittleEndian.PutUint32(meta.data[0:4], metaMagic)
	binary.LittleEndian.PutUint32(meta.data[4:8], cfg.PageSize)
	binary.LittleEndian.PutUint16(meta.data[8:10], cfg.KeySize)
	binary.LittleEndian.PutUint64(meta.data[16:24], 0) // root address: empty tree
	meta.markDirty()
	if err := meta.flush(dev); err != nil {
		return nil, err
	}
	db.meta = meta
	db.tree = newBtree(db, 0)
	return db, nil
}

// Open reopens an existing database file at path.
func Open(path string, cfg Config) (*Database, error) {
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}
	dev, err := OpenFileDevice(path, 4096, cfg.deviceFlags())
	if err != nil {
		return nil, err
	}

	db := &Database{
		device:   dev,
		cmp:      newComparator(cfg.Compare),
		blobs:    newMemBlobStore(),
		extkeys:  newExtKeyCache(),
		dups:     newDupStore(),
		compress: cfg.Compressor,
		crc:      cfg.EnableCRC32,
	}
	if db.compress == nil {
		db.compress = NoopCompressor{}
	}

	meta := newPage(db, 4096, true)
	if err := meta.fetch(dev, 0); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(meta.data[0:4]) != metaMagic {
		return nil, newErr(ErrCorruption, "db: bad meta magic")
	}
	db.pageSize = binary.LittleEndian.Uint32(meta.data[4:8])
	db.keySize = binary.LittleEndian.Uint16(meta.data[8:10])
	root := binary.LittleEndian.Uint64(meta.data[16:24])

	db.cache = newPageCache(db, cfg.CacheSize, &db.Stats)
	db.meta = meta
	db.tree = newBtree(db, root)
	return db, nil
}

// rootAddress returns the current root page address (0 = empty tree).
func (db *Database) rootAddress() uint64 {
	return binary.LittleEndian.Uint64(db.meta.data[16:24])
}

// setRootAddress persists a new root page address into the meta page.
func (db *Database) setRootAddress(addr uint64) {
	binary.LittleEndian.PutUint64(db.meta.data[16:24], addr)
	db.meta.markDirty()
}

// Insert inserts key/value. See Btree.Insert for flag semantics.
func (db *Database) Insert(key, value []byte, flags InsertFlags) error {
	return db.tree.Insert(key, value, flags)
}

// Find looks up key and returns its record. Equivalent to opening a
// throwaway cursor and calling Find with ExactMatch.
func (db *Database) Find(key []byte) ([]byte, error) {
	cur := db.NewCursor()
	defer cur.Close()
	_, rec, err := cur.Find(key, nil, true, nil, ExactMatch)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Erase removes key (and, absent EraseDuplicate, its whole duplicate
// list) from the tree.
func (db *Database) Erase(key []byte, flags EraseFlags) error {
	_, _, err := db.tree.Erase(key, flags)
	return err
}

// NewCursor returns a new nil-state cursor over this database.
func (db *Database) NewCursor() *Cursor {
	return &Cursor{db: db, state: cursorNil}
}

// Close flushes all dirty pages and releases the device.
func (db *Database) Close() error {
	if err := db.cache.flushAll(); err != nil {
		return err
	}
	if err := db.meta.flush(db.device); err != nil {
		return err
	}
	return db.device.Close()
}
