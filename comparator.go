package upscaledb

import "bytes"

// CompareFunc is the polymorphic comparator capability: given the raw
// flags/bytes/size of two keys, return <0, 0, >0 the way bytes.Compare
// does. flags carries the record's keyFlags so a comparator can special
// case extended keys if it wants to, though the default resolves
// extended keys transparently before calling the user comparator.
type CompareFunc func(lflags keyFlags, l []byte, rflags keyFlags, r []byte) int

// DefaultCompare is the built-in byte-lexicographic comparator, used
// when a Database is opened without a user comparator.
func DefaultCompare(_ keyFlags, l []byte, _ keyFlags, r []byte) int {
	return bytes.Compare(l, r)
}

// comparator is the small variant the database holds: either the
// default memcmp-style comparator or a user-supplied callback. Kept as
// a plain struct rather than an interface, matching the source's
// "small variant instead of virtual dispatch" note.
type comparator struct {
	fn CompareFunc
}

func newComparator(fn CompareFunc) *comparator {
	if fn == nil {
		fn = DefaultCompare
	}
	return &comparator{fn: fn}
}

// compare resolves extended keys via the extended-key cache before
// delegating to the configured comparator, so user comparators never
// have to know about blob storage.
func (c *comparator) compare(db *Database, lhs, rhs *keyRecord) (int, error) {
	lb, err := lhs.resolve(db)
	if err != nil {
		return 0, err
	}
	rb, err := rhs.resolve(db)
	if err != nil {
		return 0, err
	}
	return c.fn(lhs.flags(), lb, rhs.flags(), rb), nil
}
