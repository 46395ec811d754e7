package upscaledb

import "sync/atomic"

// BlobStore owns extended-key and big-record byte blobs, identified by
// a nonzero uint64 id. Blobs are never shared: every key copy that
// touches an extended blob allocates a new one.
type BlobStore interface {
	Alloc(data []byte) (id uint64, err error)
	Read(id uint64) ([]byte, error)
	Free(id uint64) error
}

// memBlobStore is the default in-process BlobStore, backing both
// extended keys and big records for in-memory and file-backed
// databases alike. Blobs live only in process memory; they are not
// written to the device.
type memBlobStore struct {
	next atomic.Uint64
	data map[uint64][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{data: make(map[uint64][]byte)}
}

func (s *memBlobStore) Alloc(data []byte) (uint64, error) {
	id := s.next.Add(1)
	buf := append([]byte(nil), data...)
	s.data[id] = buf
	return id, nil
}

func (s *memBlobStore) Read(id uint64) ([]byte, error) {
	if id == 0 {
		return nil, newErr(ErrCorruption, "blobstore: zero id")
	}
	buf, ok := s.data[id]
	if !ok {
		return nil, newErr(ErrCorruption, "blobstore: unknown blob id")
	}
	return buf, nil
}

func (s *memBlobStore) Free(id uint64) error {
	if id == 0 {
		return newErr(ErrCorruption, "blobstore: zero id")
	}
	delete(s.data, id)
	return nil
}

// extKeyCache is an optional map from extended-blob id to materialized
// key bytes, invalidated whenever the blob it caches is freed.
type extKeyCache struct {
	entries map[uint64][]byte
}

func newExtKeyCache() *extKeyCache {
	return &extKeyCache{entries: make(map[uint64][]byte)}
}

// resolve returns the materialized key bytes for blob id, consulting
// (and populating) the cache first.
func (c *extKeyCache) resolve(db *Database, id uint64) ([]byte, error) {
	if buf, ok := c.entries[id]; ok {
		return buf, nil
	}
	buf, err := db.blobs.Read(id)
	if err != nil {
		return nil, err
	}
	c.entries[id] = buf
	return buf, nil
}

// invalidate drops id's cache entry, if any. Called whenever the
// underlying blob is freed so the cache never serves stale bytes.
func (c *extKeyCache) invalidate(id uint64) {
	delete(c.entries, id)
}

// dupStore owns duplicate record-id lists for keys flagged
// keyDuplicate, identified by a nonzero uint64 id distinct from the
// BlobStore's id namespace.
type dupStore struct {
	next atomic.Uint64
	data map[uint64][]uint64
}

func newDupStore() *dupStore {
	return &dupStore{data: make(map[uint64][]uint64)}
}

func (s *dupStore) alloc(ids []uint64) uint64 {
	id := s.next.Add(1)
	s.data[id] = append([]uint64(nil), ids...)
	return id
}

func (s *dupStore) get(id uint64) ([]uint64, error) {
	ids, ok := s.data[id]
	if !ok {
		return nil, newErr(ErrCorruption, "dupstore: unknown duplicate-list id")
	}
	return ids, nil
}

func (s *dupStore) append(id uint64, rid uint64) error {
	ids, ok := s.data[id]
	if !ok {
		return newErr(ErrCorruption, "dupstore: unknown duplicate-list id")
	}
	s.data[id] = append(ids, rid)
	return nil
}

// set replaces id's duplicate list wholesale, used when erasing one
// entry out of the middle of the list.
func (s *dupStore) set(id uint64, ids []uint64) error {
	if _, ok := s.data[id]; !ok {
		return newErr(ErrCorruption, "dupstore: unknown duplicate-list id")
	}
	s.data[id] = ids
	return nil
}

func (s *dupStore) free(id uint64) {
	delete(s.data, id)
}

func (s *dupStore) count(id uint64) (int, error) {
	ids, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
