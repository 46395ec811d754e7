package upscaledb

// CursorFlags select match/movement mode for Cursor.Find and
// Cursor.Move.
type CursorFlags uint32

const (
	// ExactMatch requires the key to be present exactly (Find only).
	ExactMatch CursorFlags = 1 << iota
	// LtMatch selects the greatest key strictly less than the given
	// key (Find only).
	LtMatch
	// GtMatch selects the least key strictly greater than the given
	// key (Find only).
	GtMatch
	// LeMatch selects the greatest key less than or equal to the
	// given key (Find only).
	LeMatch
	// GeMatch selects the least key greater than or equal to the
	// given key (Find only).
	GeMatch
	// First selects the first key in the tree (Move only).
	First
	// Last selects the last key in the tree (Move only).
	Last
	// Next advances to the next key (or duplicate) (Move only).
	Next
	// Previous moves to the previous key (or duplicate) (Move only).
	Previous
	// SkipDuplicates causes Next/Previous to move past a key's
	// remaining duplicates instead of iterating them one at a time.
	SkipDuplicates
	// OnlyDuplicates restricts Next/Previous to the current key's
	// duplicate list, never crossing to a different key.
	OnlyDuplicates
)

type cursorState uint8

const (
	cursorNil cursorState = iota
	cursorCoupled
	cursorUncoupled
)

// Cursor is a random-access iterator with a three-state lifecycle: nil
// (points nowhere), coupled (holds a direct page/slot/duplicate-index
// reference and is enlisted on that page's intrusive cursor list), or
// uncoupled (holds an owned copy of its key, no page reference).
type Cursor struct {
	db    *Database
	state cursorState

	page     *Page
	slot     int
	dupIndex int
	listNode *pageCursorNode

	uncoupledKey []byte
	arena        Arena
}

// Clone duplicates other's state into c; if other is coupled, c
// enlists on the same page.
func (c *Cursor) Clone(other *Cursor) {
	c.SetToNil()
	c.db = other.db
	c.state = other.state
	c.dupIndex = other.dupIndex
	switch other.state {
	case cursorCoupled:
		c.page = other.page
		c.slot = other.slot
		c.listNode = other.page.enlistCursor(c)
	case cursorUncoupled:
		c.uncoupledKey = c.arena.Append(other.uncoupledKey)
	}
}

// SetToNil unlinks c from its page's cursor list (if coupled) and
// discards its uncoupled key buffer, leaving c pointing nowhere.
func (c *Cursor) SetToNil() {
	if c.state == cursorCoupled && c.page != nil {
		c.page.delistCursor(c.listNode)
	}
	c.page = nil
	c.listNode = nil
	c.slot = 0
	c.dupIndex = 0
	c.uncoupledKey = nil
	c.arena.Reset()
	c.state = cursorNil
}

// Close is equivalent to SetToNil.
func (c *Cursor) Close() error {
	c.SetToNil()
	return nil
}

func (c *Cursor) coupleToPage(p *Page, slot, dupIndex int) {
	if c.state == cursorCoupled && c.page != nil {
		c.page.delistCursor(c.listNode)
	}
	c.page = p
	c.slot = slot
	c.dupIndex = dupIndex
	c.listNode = p.enlistCursor(c)
	c.state = cursorCoupled
	c.uncoupledKey = nil
}

// uncoupleFromPage copies the current key into the cursor's private
// arena, unlinks it from the page's list, and transitions to
// uncoupled. A no-op on an already-uncoupled or nil cursor.
func (c *Cursor) uncoupleFromPage() error {
	if c.state != cursorCoupled {
		return nil
	}
	nv := c.page.node(c.db.keySize)
	kr := nv.keyAt(c.slot)
	kb, err := kr.resolve(c.db)
	if err != nil {
		return err
	}
	c.uncoupledKey = c.arena.Append(kb)
	c.page.delistCursor(c.listNode)
	c.listNode = nil
	c.page = nil
	c.state = cursorUncoupled
	return nil
}

// couple lazily re-locates an uncoupled cursor by performing a normal
// exact find on its stored key. A no-op if not uncoupled.
func (c *Cursor) couple() error {
	if c.state != cursorUncoupled {
		return nil
	}
	key := c.uncoupledKey
	leafPage, leafNV, err := c.db.tree.search(key)
	if err != nil {
		return err
	}
	if leafPage == nil {
		return newErr(ErrNotFound, "cursor: key no longer present")
	}
	slot, exact, err := c.db.tree.getSlotIndex(leafNV, key)
	if err != nil {
		return err
	}
	if !exact {
		return newErr(ErrNotFound, "cursor: key no longer present")
	}
	dup := c.dupIndex
	c.coupleToPage(leafPage, slot, dup)
	return nil
}

// uncoupleAllCursors walks page's intrusive cursor list and uncouples
// every cursor whose slot is >= start. Must be called before any
// in-place mutation that renumbers slots.
func uncoupleAllCursors(page *Page, start int) error {
	for n := page.cursorHead; n != nil; {
		next := n.next
		if n.cur.state == cursorCoupled && n.cur.slot >= start {
			if err := n.cur.uncoupleFromPage(); err != nil {
				return err
			}
		}
		n = next
	}
	return nil
}

// currentKeyRecord returns the keyRecord view for the cursor's current
// position, lazily recoupling first if the cursor is uncoupled.
func (c *Cursor) currentKeyRecord() (*keyRecord, error) {
	if c.state == cursorUncoupled {
		if err := c.couple(); err != nil {
			return nil, err
		}
	}
	if c.state != cursorCoupled {
		return nil, newErr(ErrInvalidArgument, "cursor: not coupled")
	}
	nv := c.page.node(c.db.keySize)
	return nv.keyAt(c.slot), nil
}

// Find locates key according to flags and, on success, leaves c
// coupled to the found slot. If wantRecord is set the matching record
// is returned too, copied into recordArena when that is non-nil.
func (c *Cursor) Find(key []byte, keyArena *Arena, wantRecord bool, recordArena *Arena, flags CursorFlags) ([]byte, []byte, error) {
	bt := c.db.tree
	leafPage, leafNV, err := bt.search(key)
	if err != nil {
		return nil, nil, err
	}
	if leafPage == nil {
		return nil, nil, newErr(ErrNotFound, "cursor: empty tree")
	}
	slot, exact, err := bt.getSlotIndex(leafNV, key)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case flags&ExactMatch != 0 || flags == 0:
		if !exact {
			return nil, nil, newErr(ErrNotFound, "cursor: key not found")
		}
	case flags&GeMatch != 0:
		leafPage, leafNV, slot, err = c.seekForward(leafPage, leafNV, slot, exact)
	case flags&GtMatch != 0:
		start := slot + 1
		leafPage, leafNV, slot, err = c.seekForward(leafPage, leafNV, start-1, false)
	case flags&LeMatch != 0:
		leafPage, leafNV, slot, err = c.seekBackward(leafPage, leafNV, slot, exact)
	case flags&LtMatch != 0:
		if exact {
			leafPage, leafNV, slot, err = c.seekBackward(leafPage, leafNV, slot-1, true)
		} else {
			leafPage, leafNV, slot, err = c.seekBackward(leafPage, leafNV, slot, true)
		}
	default:
		if !exact {
			return nil, nil, newErr(ErrNotFound, "cursor: key not found")
		}
	}
	if err != nil {
		return nil, nil, err
	}

	c.coupleToPage(leafPage, slot, 0)
	return c.materialize(keyArena, wantRecord, recordArena)
}

// seekForward returns the first valid slot at or after (page,slot),
// crossing leaf boundaries via right(). If exact is true the given
// slot itself is used (>= case); otherwise slot+1 is the starting
// point (> case).
func (c *Cursor) seekForward(page *Page, nv *nodeView, slot int, exact bool) (*Page, *nodeView, int, error) {
	target := slot
	if !exact {
		target = slot + 1
	}
	for {
		if target >= 0 && target < nv.count() {
			return page, nv, target, nil
		}
		right := nv.right()
		if right == ptrNone {
			return nil, nil, 0, newErr(ErrNotFound, "cursor: no key in range")
		}
		var err error
		page, nv, err = c.db.tree.loadPage(right)
		if err != nil {
			return nil, nil, 0, err
		}
		target = 0
	}
}

// seekBackward is seekForward's mirror using left().
func (c *Cursor) seekBackward(page *Page, nv *nodeView, slot int, _ bool) (*Page, *nodeView, int, error) {
	target := slot
	for {
		if target >= 0 && target < nv.count() {
			return page, nv, target, nil
		}
		left := nv.left()
		if left == ptrNone {
			return nil, nil, 0, newErr(ErrNotFound, "cursor: no key in range")
		}
		var err error
		page, nv, err = c.db.tree.loadPage(left)
		if err != nil {
			return nil, nil, 0, err
		}
		target = nv.count() - 1
	}
}

// Move advances the cursor per flags (First/Last/Next/Previous). From
// nil, First/Last are allowed; Next/Previous return NotFound.
func (c *Cursor) Move(keyArena *Arena, wantRecord bool, recordArena *Arena, flags CursorFlags) ([]byte, []byte, error) {
	bt := c.db.tree

	switch {
	case flags&First != 0:
		page, nv, err := bt.firstLeaf()
		if err != nil {
			return nil, nil, err
		}
		if page == nil || nv.count() == 0 {
			return nil, nil, newErr(ErrNotFound, "cursor: empty tree")
		}
		c.coupleToPage(page, 0, 0)

	case flags&Last != 0:
		page, nv, err := bt.lastLeaf()
		if err != nil {
			return nil, nil, err
		}
		if page == nil || nv.count() == 0 {
			return nil, nil, newErr(ErrNotFound, "cursor: empty tree")
		}
		c.coupleToPage(page, nv.count()-1, 0)
		kr := page.node(c.db.keySize).keyAt(nv.count() - 1)
		if kr.flags()&keyDuplicate != 0 {
			n, err := c.db.dups.count(kr.recordID)
			if err == nil && n > 0 {
				c.dupIndex = n - 1
			}
		}

	case flags&Next != 0:
		if err := c.advance(1, flags); err != nil {
			return nil, nil, err
		}

	case flags&Previous != 0:
		if err := c.advance(-1, flags); err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, newErr(ErrInvalidArgument, "cursor: move requires First/Last/Next/Previous")
	}

	return c.materialize(keyArena, wantRecord, recordArena)
}

// advance implements Next (dir=1) / Previous (dir=-1).
func (c *Cursor) advance(dir int, flags CursorFlags) error {
	if c.state == cursorUncoupled {
		if err := c.couple(); err != nil {
			return err
		}
	}
	if c.state != cursorCoupled {
		return newErr(ErrNotFound, "cursor: nil cursor cannot move next/previous")
	}

	nv := c.page.node(c.db.keySize)
	kr := nv.keyAt(c.slot)

	if kr.flags()&keyDuplicate != 0 && flags&SkipDuplicates == 0 {
		n, err := c.db.dups.count(kr.recordID)
		if err != nil {
			return err
		}
		next := c.dupIndex + dir
		if next >= 0 && next < n {
			c.dupIndex = next
			return nil
		}
		if flags&OnlyDuplicates != 0 {
			return newErr(ErrNotFound, "cursor: no more duplicates")
		}
	} else if flags&OnlyDuplicates != 0 {
		return newErr(ErrNotFound, "cursor: no more duplicates")
	}

	if dir > 0 {
		target := c.slot + 1
		if target < nv.count() {
			c.coupleToPage(c.page, target, 0)
			return nil
		}
		right := nv.right()
		if right == ptrNone {
			return newErr(ErrNotFound, "cursor: at end")
		}
		p, rnv, err := c.db.tree.loadPage(right)
		if err != nil {
			return err
		}
		if rnv.count() == 0 {
			return newErr(ErrNotFound, "cursor: at end")
		}
		c.coupleToPage(p, 0, 0)
		return nil
	}

	target := c.slot - 1
	if target >= 0 {
		c.coupleToPage(c.page, target, 0)
		return nil
	}
	left := nv.left()
	if left == ptrNone {
		return newErr(ErrNotFound, "cursor: at beginning")
	}
	p, lnv, err := c.db.tree.loadPage(left)
	if err != nil {
		return err
	}
	if lnv.count() == 0 {
		return newErr(ErrNotFound, "cursor: at beginning")
	}
	newSlot := lnv.count() - 1
	c.coupleToPage(p, newSlot, 0)
	kr2 := lnv.keyAt(newSlot)
	if kr2.flags()&keyDuplicate != 0 {
		n, err := c.db.dups.count(kr2.recordID)
		if err == nil && n > 0 {
			c.dupIndex = n - 1
		}
	}
	return nil
}

// Overwrite replaces the record of the currently-coupled key. Asserts
// coupled.
func (c *Cursor) Overwrite(record []byte, flags uint32) error {
	if c.state == cursorUncoupled {
		if err := c.couple(); err != nil {
			return err
		}
	}
	if c.state != cursorCoupled {
		return newErr(ErrInvalidArgument, "cursor: overwrite requires a coupled cursor")
	}
	kr, err := c.currentKeyRecord()
	if err != nil {
		return err
	}
	if kr.flags()&keyDuplicate != 0 {
		id, err := c.db.blobs.Alloc(record)
		if err != nil {
			return err
		}
		ids, err := c.db.dups.get(kr.recordID)
		if err != nil {
			return err
		}
		if c.dupIndex < 0 || c.dupIndex >= len(ids) {
			return newErr(ErrInvalidArgument, "cursor: duplicate index out of range")
		}
		old := ids[c.dupIndex]
		ids[c.dupIndex] = id
		_ = c.db.blobs.Free(old)
		c.page.markDirty()
		return nil
	}
	return kr.setRecord(c.db, record)
}

// GetRecordCount returns the number of duplicates under the current
// key (1 if it has none).
func (c *Cursor) GetRecordCount() (int, error) {
	kr, err := c.currentKeyRecord()
	if err != nil {
		return 0, err
	}
	if kr.flags()&keyDuplicate != 0 {
		return c.db.dups.count(kr.recordID)
	}
	return 1, nil
}

// GetRecordSize returns the byte length of the current duplicate's
// record.
func (c *Cursor) GetRecordSize() (int, error) {
	kr, err := c.currentKeyRecord()
	if err != nil {
		return 0, err
	}
	rec, err := kr.recordBytes(c.db, c.dupIndex)
	if err != nil {
		return 0, err
	}
	return len(rec), nil
}

// materialize returns the current key (via keyArena, if non-nil) and,
// if wantRecord, the current record (via recordArena, if non-nil).
func (c *Cursor) materialize(keyArena *Arena, wantRecord bool, recordArena *Arena) ([]byte, []byte, error) {
	kr, err := c.currentKeyRecord()
	if err != nil {
		return nil, nil, err
	}
	kb, err := kr.resolve(c.db)
	if err != nil {
		return nil, nil, err
	}
	if keyArena != nil {
		kb = keyArena.Append(kb)
	}
	if !wantRecord {
		return kb, nil, nil
	}
	rec, err := kr.recordBytes(c.db, c.dupIndex)
	if err != nil {
		return nil, nil, err
	}
	if recordArena != nil {
		rec = recordArena.Append(rec)
	}
	return kb, rec, nil
}

// firstLeaf/lastLeaf descend from the root following ptrLeft/rightmost
// child pointers respectively.
func (bt *Btree) firstLeaf() (*Page, *nodeView, error) {
	addr := bt.db.rootAddress()
	if addr == ptrNone {
		return nil, nil, nil
	}
	for {
		p, nv, err := bt.loadPage(addr)
		if err != nil {
			return nil, nil, err
		}
		if nv.isLeaf() {
			return p, nv, nil
		}
		addr = nv.ptrLeft()
	}
}

func (bt *Btree) lastLeaf() (*Page, *nodeView, error) {
	addr := bt.db.rootAddress()
	if addr == ptrNone {
		return nil, nil, nil
	}
	for {
		p, nv, err := bt.loadPage(addr)
		if err != nil {
			return nil, nil, err
		}
		if nv.isLeaf() {
			return p, nv, nil
		}
		addr = nv.childPtr(nv.count() - 1)
	}
}
