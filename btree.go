package upscaledb

// ptrNone is the sentinel "no child / no sibling / empty tree" value.
// Address 0 is reserved for the database's meta page (see db.go), so
// no real B+tree node ever lands there, and 0 is safe to use as a
// sentinel throughout node.go and this file.
const ptrNone uint64 = 0

// Btree is the traversal, insert, and erase engine over a single tree
// rooted at db.rootAddress(). It owns neither pages (the cache does)
// nor cursors (the parent Database/Cursor does).
type Btree struct {
	db      *Database
	keySize uint16
}

func newBtree(db *Database, _root uint64) *Btree {
	return &Btree{db: db, keySize: db.keySize}
}

// loadPage fetches the page at addr through the cache and returns its
// node view.
func (bt *Btree) loadPage(addr uint64) (*Page, *nodeView, error) {
	p, err := bt.db.cache.get(addr)
	if err != nil {
		return nil, nil, err
	}
	return p, p.node(bt.keySize), nil
}

// isEmpty reports whether the tree currently has no root page.
func (bt *Btree) isEmpty() bool {
	return bt.db.rootAddress() == ptrNone
}

// allocLeaf/allocInternal allocate and initialize a fresh node page.
func (bt *Btree) allocLeaf() (*Page, *nodeView, error) {
	p := newPage(bt.db, bt.db.pageSize, false)
	if err := p.alloc(bt.db.device, true); err != nil {
		return nil, nil, err
	}
	nv := p.node(bt.keySize)
	nv.init(true)
	if err := bt.db.cache.insertNew(p); err != nil {
		return nil, nil, err
	}
	return p, nv, nil
}

func (bt *Btree) allocInternal() (*Page, *nodeView, error) {
	p := newPage(bt.db, bt.db.pageSize, false)
	if err := p.alloc(bt.db.device, true); err != nil {
		return nil, nil, err
	}
	nv := p.node(bt.keySize)
	nv.init(false)
	if err := bt.db.cache.insertNew(p); err != nil {
		return nil, nil, err
	}
	return p, nv, nil
}

// keyCompare compares a raw candidate key against slot i's key.
func (bt *Btree) keyCompare(nv *nodeView, i int, key []byte) (int, error) {
	kr := nv.keyAt(i)
	kb, err := kr.resolve(bt.db)
	if err != nil {
		return 0, err
	}
	return bt.db.cmp.fn(kr.flags(), kb, 0, key), nil
}

// getSlotIndex returns the slot whose key is the largest <= key, or -1
// if key precedes slot 0. Exact matches return the exact slot. This is
// the direct analogue of get_slot for leaf lookups; traverseTree below
// adjusts its result for internal-node descent.
func (bt *Btree) getSlotIndex(nv *nodeView, key []byte) (int, bool, error) {
	count := nv.count()
	lo, hi := 0, count // search over [0, count)
	found := false
	for lo < hi {
		mid := (lo + hi) / 2
		c, err := bt.keyCompare(nv, mid, key)
		if err != nil {
			return 0, false, err
		}
		if c == 0 {
			return mid, true, nil
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	// lo is the insertion point: number of slots with key < search key.
	slot := lo - 1
	return slot, found, nil
}

// traverseTree returns the child slot (-1 for ptrLeft) and child page
// address to descend into for key, from an internal node. Per
// invariant 3, subtree p_i covers (k_i, k_{i+1}]; an exact match at
// slot i belongs to the left neighbor (p_{i-1}, or ptrLeft if i==0),
// since k_i itself is the largest key of that left subtree.
func (bt *Btree) traverseTree(nv *nodeView, key []byte) (int, uint64, error) {
	slot, exact, err := bt.getSlotIndex(nv, key)
	if err != nil {
		return 0, 0, err
	}
	if slot == -1 {
		return -1, nv.ptrLeft(), nil
	}
	if exact {
		if slot == 0 {
			return -1, nv.ptrLeft(), nil
		}
		return slot - 1, nv.childPtr(slot - 1), nil
	}
	return slot, nv.childPtr(slot), nil
}

// search descends from the root to the leaf that would contain key and
// returns that leaf's page and node view (nil, nil for an empty tree);
// callers locate the slot within it via getSlotIndex.
func (bt *Btree) search(key []byte) (*Page, *nodeView, error) {
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
		_, child, err := bt.traverseTree(nv, key)
		if err != nil {
			return nil, nil, err
		}
		addr = child
	}
}
