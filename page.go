package upscaledb

import "encoding/binary"

// pageHeaderSize is the size, in bytes, of the common on-disk page
// header: a single CRC32 field. Pages opened with the without-header
// flag omit this entirely and their payload starts at offset 0.
const pageHeaderSize = 4

// PageShadow is the pre-mutation snapshot handed back by
// Page.deepCopyData. Ownership transfers fully to whoever holds it;
// the holder is responsible for discarding it when done (there is
// nothing to explicitly free in Go beyond letting it become
// unreachable).
type PageShadow struct {
	data []byte
}

// Bytes returns the shadow's raw page bytes, exactly as they stood the
// moment deepCopyData was called.
func (s *PageShadow) Bytes() []byte { return s.data }

// pageCursorNode is one link in a Page's intrusive cursor list.
type pageCursorNode struct {
	cur        *Cursor
	prev, next *pageCursorNode
}

// Page exclusively owns a raw byte buffer of the configured page size.
// It is the unit the Device reads and writes, and the substrate the
// Node view interprets.
type Page struct {
	db            *Database
	address       uint64 // 0 until allocated
	size          uint32 // fixed after construction
	dirty         bool
	withoutHeader bool
	inline        bool // true until the first deepCopyData call

	data []byte // primary descriptor: the raw page bytes

	cursorHead *pageCursorNode // intrusive list of coupled cursors

	nv *nodeView // cached interpretation of data; invalidated on swap
}

// newPage constructs an empty Page of the given size, not yet backed
// by any address.
func newPage(db *Database, size uint32, withoutHeader bool) *Page {
	return &Page{
		db:            db,
		size:          size,
		data:          make([]byte, size),
		withoutHeader: withoutHeader,
		inline:        true,
	}
}

// mutableBuffer returns the full raw buffer for a Device to read/write
// into directly.
func (p *Page) mutableBuffer() []byte {
	return p.data
}

// Address returns this page's offset in the backing store, or 0 if it
// has not been allocated yet.
func (p *Page) Address() uint64 { return p.address }

// Dirty reports whether this page has unwritten mutations.
func (p *Page) Dirty() bool { return p.dirty }

// markDirty flags the page as needing a flush.
func (p *Page) markDirty() {
	p.dirty = true
}

// payload returns the slice of p.data holding the node/meta content,
// skipping the common header unless this page was opened without one.
func (p *Page) payload() []byte {
	if p.withoutHeader {
		return p.data
	}
	return p.data[pageHeaderSize:]
}

// alloc asks the device for a fresh page and optionally zero-fills it.
// Fails when the device cannot extend.
func (p *Page) alloc(dev Device, zeroFill bool) error {
	if err := dev.AllocPage(p); err != nil {
		return wrapErr(ErrIo, "page: alloc", err)
	}
	if zeroFill {
		for i := range p.data {
			p.data[i] = 0
		}
	}
	p.dirty = true
	return nil
}

// fetch populates the buffer from the backing store at address.
func (p *Page) fetch(dev Device, address uint64) error {
	if err := dev.ReadPage(p, address); err != nil {
		return wrapErr(ErrIo, "page: fetch", err)
	}
	p.address = address
	if dev.Flags()&DeviceEnableCRC32 != 0 && !p.withoutHeader {
		if err := p.verifyCRC(); err != nil {
			return err
		}
	}
	return nil
}

// crcHashSpan is the payload the CRC covers: everything after the
// 4-byte header field itself. The upstream engine's "+1" formula is an
// artifact of its header struct ending in a flexible array member that
// inflates sizeof by one; it does not mean the digest should overlap
// the CRC field's own bytes.
func (p *Page) crcHashSpan() []byte {
	return p.data[pageHeaderSize:]
}

// stampCRC recomputes and writes the page's CRC32 field. The digest is
// MurmurHash3 x86-32 over the payload span, seeded with the page's own
// address so an identical payload at a different offset yields a
// different digest.
func (p *Page) stampCRC() {
	span := p.crcHashSpan()
	sum := crc32PageHash(span, uint32(p.address))
	binary.LittleEndian.PutUint32(p.data[0:4], sum)
}

// verifyCRC recomputes the CRC32 and compares it against the stored
// field, returning ErrCorruption on mismatch.
func (p *Page) verifyCRC() error {
	want := binary.LittleEndian.Uint32(p.data[0:4])
	span := p.crcHashSpan()
	got := crc32PageHash(span, uint32(p.address))
	if got != want {
		return newErr(ErrCorruption, "page: crc32 mismatch")
	}
	return nil
}

// flush writes the page to the device if dirty. If CRC is enabled and
// the page carries a header, the CRC is recomputed and stamped before
// the write. A write failure propagates; dirty is only cleared on
// success.
func (p *Page) flush(dev Device) error {
	if !p.dirty {
		return nil
	}
	if dev.Flags()&DeviceEnableCRC32 != 0 && !p.withoutHeader {
		p.stampCRC()
	}
	if err := dev.Write(p.address, p.data); err != nil {
		return wrapErr(ErrIo, "page: flush", err)
	}
	p.dirty = false
	return nil
}

// deepCopyData allocates a new descriptor with its own copy of the raw
// bytes, installs it as primary, and returns the previously-primary
// descriptor so a caller (e.g. a background flush) can read the
// pre-mutation snapshot while this Page keeps mutating. Returns nil if
// the primary was still the original inline descriptor (nothing has
// been snapshotted from this Page yet).
//
// Any cached node view over the page is invalidated: it holds slices
// into the old buffer, and destroying it must happen atomically with
// the swap.
func (p *Page) deepCopyData() *PageShadow {
	old := p.data
	wasInline := p.inline

	fresh := make([]byte, len(old))
	copy(fresh, old)
	p.data = fresh
	p.inline = false
	p.nv = nil

	if wasInline {
		return nil
	}
	return &PageShadow{data: old}
}

// freeBuffer destroys the cached node view and releases the raw bytes.
func (p *Page) freeBuffer() {
	p.nv = nil
	p.data = nil
}

// node returns (creating if necessary) the cached Node view over this
// page's payload.
func (p *Page) node(keySize uint16) *nodeView {
	if p.nv == nil {
		p.nv = newNodeView(p, keySize)
	}
	return p.nv
}

// enlistCursor adds cur to this page's intrusive cursor list. Called
// by Cursor.coupleToPage.
func (p *Page) enlistCursor(cur *Cursor) *pageCursorNode {
	n := &pageCursorNode{cur: cur, next: p.cursorHead}
	if p.cursorHead != nil {
		p.cursorHead.prev = n
	}
	p.cursorHead = n
	return n
}

// delistCursor removes n from this page's intrusive cursor list.
func (p *Page) delistCursor(n *pageCursorNode) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else if p.cursorHead == n {
		p.cursorHead = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// hasCursors reports whether any cursor is currently coupled to this
// page.
func (p *Page) hasCursors() bool {
	return p.cursorHead != nil
}
