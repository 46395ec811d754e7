package upscaledb

import "encoding/binary"

// keyFlags are the bits stored in a key record's flags byte, plus one
// operation-only flag (internalKey) that is never persisted.
type keyFlags uint8

const (
	// keyExtended marks that the inline bytes' trailing 8 bytes hold a
	// blob id rather than key data.
	keyExtended keyFlags = 1 << iota
	// keyTiny marks a leaf record of 1..7 bytes stored inline in the
	// record id field, with the length in that field's last byte.
	keyTiny
	// keySmall marks a leaf record of exactly 8 bytes stored inline in
	// the record id field verbatim.
	keySmall
	// keyEmpty marks a zero-length leaf record.
	keyEmpty
	// keyDuplicate marks that the record id field is a duplicate-list
	// id rather than a single record reference.
	keyDuplicate

	// internalKey is passed as an operation flag to replaceKey, never
	// stored: it instructs the write to strip the leaf-only
	// tiny/small/empty bits, since internal nodes must never carry
	// them.
	internalKey keyFlags = 1 << 7
)

const leafOnlyFlags = keyTiny | keySmall | keyEmpty | keyDuplicate

// recordIDSize is the width, in bytes, of a key record's record-id
// field.
const recordIDSize = 8

// keyRecord is a view over one slot's fixed-width stride:
// { flags:u8, key_size:u16, record_id:u64, key_bytes[keysize] }.
type keyRecord struct {
	raw      []byte
	keySize  uint16
	recordID uint64 // cached copy, kept in sync by the accessors below
	page     *Page  // owning page, for dirty tracking; nil for a freestanding scratch slot
}

func newKeyRecordView(raw []byte, keySize uint16) *keyRecord {
	kr := &keyRecord{raw: raw, keySize: keySize}
	kr.recordID = kr.readRecordID()
	return kr
}

// markDirty flags the owning page as needing a flush. A no-op for a
// freestanding scratch slot with no page yet (its bytes get dirtied
// for free once a node view copies them in via insertSlotAt/appendSlots).
func (k *keyRecord) markDirty() {
	if k.page != nil {
		k.page.markDirty()
	}
}

func (k *keyRecord) flags() keyFlags {
	return keyFlags(k.raw[0])
}

func (k *keyRecord) setFlags(f keyFlags) {
	k.raw[0] = byte(f)
	k.markDirty()
}

func (k *keyRecord) size() uint16 {
	return binary.LittleEndian.Uint16(k.raw[1:3])
}

func (k *keyRecord) setSize(n uint16) {
	binary.LittleEndian.PutUint16(k.raw[1:3], n)
	k.markDirty()
}

func (k *keyRecord) readRecordID() uint64 {
	return binary.BigEndian.Uint64(k.raw[3:11])
}

func (k *keyRecord) setRecordIDRaw(v uint64) {
	binary.BigEndian.PutUint64(k.raw[3:11], v)
	k.recordID = v
	k.markDirty()
}

func (k *keyRecord) inlineBytes() []byte {
	return k.raw[11 : 11+int(k.keySize)]
}

// inlineBytesForWrite returns the same slice as inlineBytes but marks
// the owning page dirty, for call sites that are about to overwrite it.
func (k *keyRecord) inlineBytesForWrite() []byte {
	k.markDirty()
	return k.raw[11 : 11+int(k.keySize)]
}

// blobID returns the extended-key blob id stored in the trailing 8
// bytes of the inline area. Blob ids are always stored big-endian on
// disk regardless of host byte order, since the format itself is
// fixed and there is no "native" representation to fall back to; this
// resolves the endianness ambiguity flagged in the design notes.
func (k *keyRecord) blobID() uint64 {
	ib := k.inlineBytes()
	return binary.BigEndian.Uint64(ib[len(ib)-8:])
}

func (k *keyRecord) setBlobID(id uint64) {
	ib := k.inlineBytesForWrite()
	binary.BigEndian.PutUint64(ib[len(ib)-8:], id)
}

// localBytes returns the logical key bytes when not extended: the
// first size() bytes of the inline area.
func (k *keyRecord) localBytes() []byte {
	return k.inlineBytes()[:k.size()]
}

// resolve returns the logical key bytes, transparently reading through
// the extended-key cache/blob store when the EXTENDED flag is set.
func (k *keyRecord) resolve(db *Database) ([]byte, error) {
	if k.flags()&keyExtended == 0 {
		return k.localBytes(), nil
	}
	if k.blobID() == 0 {
		return nil, newErr(ErrCorruption, "key: extended flag set but blob id is zero")
	}
	return db.extkeys.resolve(db, k.blobID())
}

// setKey writes src into this slot, allocating an extended blob when
// src exceeds keySize. flags may carry internalKey to strip the
// leaf-only bits (internal nodes must never carry TINY/SMALL/EMPTY).
func (k *keyRecord) setKey(db *Database, src []byte, opFlags keyFlags) error {
	f := opFlags &^ internalKey
	if opFlags&internalKey != 0 {
		f &^= leafOnlyFlags
	}

	if len(src) <= int(k.keySize) {
		f &^= keyExtended
		k.setFlags(f)
		k.setSize(uint16(len(src)))
		ib := k.inlineBytesForWrite()
		for i := range ib {
			ib[i] = 0
		}
		copy(ib, src)
		return nil
	}

	id, err := db.blobs.Alloc(src)
	if err != nil {
		return err
	}
	f |= keyExtended
	k.setFlags(f)
	k.setSize(uint16(len(src)))
	k.setBlobID(id)
	return nil
}

// freeExtended releases this key's blob, if any, and drops it from the
// extended-key cache. A no-op for non-extended keys.
func (k *keyRecord) freeExtended(db *Database) error {
	if k.flags()&keyExtended == 0 {
		return nil
	}
	id := k.blobID()
	if id == 0 {
		return newErr(ErrCorruption, "key: extended flag set but blob id is zero")
	}
	db.extkeys.invalidate(id)
	return db.blobs.Free(id)
}

// copyKeyInto deep-copies src's key (and, if extended, its blob) into
// dst. Every key copy that touches an extended blob allocates a new
// one; blobs are never aliased.
func copyKeyInto(db *Database, dst, src *keyRecord) error {
	dst.setFlags(src.flags())
	dst.setSize(src.size())
	if src.flags()&keyExtended == 0 {
		copy(dst.inlineBytesForWrite(), src.inlineBytes())
		return nil
	}
	data, err := db.extkeys.resolve(db, src.blobID())
	if err != nil {
		return err
	}
	id, err := db.blobs.Alloc(data)
	if err != nil {
		return err
	}
	dst.setBlobID(id)
	return nil
}

// replaceKey overwrites dst's key with src's, deep-copying src's blob
// (if any). On the extended path the new blob is allocated before
// dst's old key/blob are touched, so a failed allocation leaves dst
// unchanged rather than corrupt. flags may carry internalKey to strip
// leaf-only bits when writing into an internal node.
func replaceKey(db *Database, dst, src *keyRecord, opFlags keyFlags) error {
	f := src.flags()
	if opFlags&internalKey != 0 {
		f &^= leafOnlyFlags
	}

	if src.flags()&keyExtended == 0 {
		// No allocation on this path, so freeing dst's old blob (if
		// any) before overwriting it in place cannot strand dst
		// mid-write.
		if err := dst.freeExtended(db); err != nil {
			return err
		}
		dst.setFlags(f)
		dst.setSize(src.size())
		copy(dst.inlineBytesForWrite(), src.inlineBytes())
		return nil
	}

	// Resolve and allocate the new blob before touching dst at all: if
	// Alloc fails, dst's old key and blob are left completely intact.
	data, err := db.extkeys.resolve(db, src.blobID())
	if err != nil {
		return err
	}
	id, err := db.blobs.Alloc(data)
	if err != nil {
		return err
	}
	if err := dst.freeExtended(db); err != nil {
		return err
	}
	dst.setFlags(f)
	dst.setSize(src.size())
	dst.setBlobID(id)
	return nil
}

// recordBytes materializes this key's leaf record, resolving a
// duplicate-list, big-record blob, or inline tiny/small/empty
// encoding as appropriate. dupIndex selects among duplicates when the
// key has any; it is ignored otherwise.
func (k *keyRecord) recordBytes(db *Database, dupIndex int) ([]byte, error) {
	f := k.flags()
	switch {
	case f&keyDuplicate != 0:
		ids, err := db.dups.get(k.recordID)
		if err != nil {
			return nil, err
		}
		if dupIndex < 0 || dupIndex >= len(ids) {
			return nil, newErr(ErrInvalidArgument, "key: duplicate index out of range")
		}
		// Duplicate-list entries are always stored as full blob ids,
		// whatever their size: promoteToBlob moves an inline
		// tiny/small/empty first record into a blob when the list is
		// created, and later duplicates are allocated as blobs.
		return db.blobs.Read(ids[dupIndex])
	default:
		return k.decodeInlineRecord(db)
	}
}

// decodeInlineRecord returns the record bytes for a non-duplicate key,
// honoring EMPTY/TINY/SMALL inlining before falling back to a blob
// read.
func (k *keyRecord) decodeInlineRecord(db *Database) ([]byte, error) {
	f := k.flags()
	switch {
	case f&keyEmpty != 0:
		return nil, nil
	case f&keyTiny != 0:
		var buf [recordIDSize]byte
		binary.BigEndian.PutUint64(buf[:], k.recordID)
		n := buf[recordIDSize-1]
		return append([]byte(nil), buf[:n]...), nil
	case f&keySmall != 0:
		var buf [recordIDSize]byte
		binary.BigEndian.PutUint64(buf[:], k.recordID)
		return append([]byte(nil), buf[:]...), nil
	default:
		return db.blobs.Read(k.recordID)
	}
}

// promoteToBlob returns this key's current single record as a blob
// id, allocating a real blob out of an inline tiny/small/empty
// encoding if necessary. Used when a second Insert with InsertDuplicate
// turns a plain key into a duplicate-list key: duplicate-list entries
// are always full blob ids, never inline encodings.
func (k *keyRecord) promoteToBlob(db *Database) (uint64, error) {
	f := k.flags()
	switch {
	case f&keyEmpty != 0:
		return db.blobs.Alloc(nil)
	case f&keyTiny != 0, f&keySmall != 0:
		data, err := k.decodeInlineRecord(db)
		if err != nil {
			return 0, err
		}
		return db.blobs.Alloc(data)
	default:
		return k.recordID, nil
	}
}

// setRecord writes value as this key's leaf record, choosing inline
// encoding when it fits and a blob otherwise. Must not be called on a
// duplicate-flagged key; duplicate lists are edited through db.dups
// (see insertDuplicateOrOverwrite and Cursor.Overwrite).
func (k *keyRecord) setRecord(db *Database, value []byte) error {
	f := k.flags() &^ (keyTiny | keySmall | keyEmpty | keyDuplicate)
	switch {
	case len(value) == 0:
		f |= keyEmpty
		k.setFlags(f)
		k.setRecordIDRaw(0)
	case len(value) < recordIDSize:
		f |= keyTiny
		k.setFlags(f)
		var buf [recordIDSize]byte
		copy(buf[:], value)
		buf[recordIDSize-1] = byte(len(value))
		k.setRecordIDRaw(binary.BigEndian.Uint64(buf[:]))
	case len(value) == recordIDSize:
		f |= keySmall
		k.setFlags(f)
		k.setRecordIDRaw(binary.BigEndian.Uint64(value))
	default:
		id, err := db.blobs.Alloc(value)
		if err != nil {
			return err
		}
		k.setFlags(f)
		k.setRecordIDRaw(id)
	}
	return nil
}
