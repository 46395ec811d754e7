package upscaledb

// InsertFlags are the call flags accepted by Btree.Insert.
type InsertFlags uint32

const (
	// InsertOverwrite replaces the record of an exact-match key
	// instead of failing with ErrKeyExists.
	InsertOverwrite InsertFlags = 1 << iota
	// InsertDuplicate appends value as an additional record under an
	// exact-match key instead of failing with ErrKeyExists.
	InsertDuplicate
)

// pathFrame is one level of the descent stack recorded while looking
// for the leaf to insert into: the internal page at this level and
// the child slot (-1 for ptrLeft) chosen to descend further.
type pathFrame struct {
	page      *Page
	nv        *nodeView
	childSlot int
}

// Insert inserts key/value into the tree, splitting nodes on the way
// up as needed. With no flags, an exact-match key fails with
// ErrKeyExists.
func (bt *Btree) Insert(key []byte, value []byte, flags InsertFlags) error {
	if len(key) == 0 {
		return newErr(ErrInvalidArgument, "btree: empty key")
	}

	if bt.isEmpty() {
		page, nv, err := bt.allocLeaf()
		if err != nil {
			return err
		}
		nv.setRoot(true)
		stride := make([]byte, nv.slotStride())
		kr := newKeyRecordView(stride, bt.keySize)
		if err := kr.setKey(bt.db, key, 0); err != nil {
			return err
		}
		if err := kr.setRecord(bt.db, value); err != nil {
			return err
		}
		nv.insertSlotAt(0, stride)
		bt.db.setRootAddress(page.address)
		return nil
	}

	var path []pathFrame
	addr := bt.db.rootAddress()
	var leafPage *Page
	var leafNV *nodeView
	for {
		p, nv, err := bt.loadPage(addr)
		if err != nil {
			return err
		}
		if nv.isLeaf() {
			leafPage, leafNV = p, nv
			break
		}
		slot, child, err := bt.traverseTree(nv, key)
		if err != nil {
			return err
		}
		path = append(path, pathFrame{page: p, nv: nv, childSlot: slot})
		addr = child
	}

	slot, exact, err := bt.getSlotIndex(leafNV, key)
	if err != nil {
		return err
	}

	if exact {
		return bt.insertDuplicateOrOverwrite(leafNV, slot, value, flags)
	}

	insertPos := slot + 1
	stride := make([]byte, leafNV.slotStride())
	kr := newKeyRecordView(stride, bt.keySize)
	if err := kr.setKey(bt.db, key, 0); err != nil {
		return err
	}
	if err := kr.setRecord(bt.db, value); err != nil {
		return err
	}

	if leafNV.count() < leafNV.maxKeys() {
		if err := uncoupleAllCursors(leafPage, insertPos); err != nil {
			return err
		}
		leafNV.insertSlotAt(insertPos, stride)
		return nil
	}

	return bt.splitLeafAndInsert(leafPage, leafNV, insertPos, stride, path)
}

func (bt *Btree) insertDuplicateOrOverwrite(nv *nodeView, slot int, value []byte, flags InsertFlags) error {
	kr := nv.keyAt(slot)
	switch {
	case flags&InsertOverwrite != 0:
		return kr.setRecord(bt.db, value)
	case flags&InsertDuplicate != 0:
		newID, err := bt.db.blobs.Alloc(value)
		if err != nil {
			return err
		}
		if kr.flags()&keyDuplicate != 0 {
			return bt.db.dups.append(kr.recordID, newID)
		}
		oldID, err := kr.promoteToBlob(bt.db)
		if err != nil {
			return err
		}
		listID := bt.db.dups.alloc([]uint64{oldID, newID})
		kr.setFlags((kr.flags() &^ (keyTiny | keySmall | keyEmpty)) | keyDuplicate)
		kr.setRecordIDRaw(listID)
		return nil
	default:
		return newErr(ErrKeyExists, "btree: key exists")
	}
}

// splitLeafAndInsert rebuilds page's slot array plus the new entry in
// a scratch buffer, splits it into two leaves, and propagates the
// separator up the path: a genuine copy of the left leaf's last key
// (max-of-left), since traverseTree's exact-match descent and the
// shift helpers' post-borrow separator rewrite both assume a
// separator is the largest key of its left subtree.
func (bt *Btree) splitLeafAndInsert(page *Page, nv *nodeView, insertPos int, newStride []byte, path []pathFrame) error {
	bt.db.Stats.Splits++
	stride := nv.slotStride()
	count := nv.count()
	total := count + 1

	if err := uncoupleAllCursors(page, 0); err != nil {
		return err
	}

	buf := make([]byte, total*stride)
	existing := nv.rawSlots(count)
	copy(buf[:insertPos*stride], existing[:insertPos*stride])
	copy(buf[insertPos*stride:(insertPos+1)*stride], newStride)
	copy(buf[(insertPos+1)*stride:], existing[insertPos*stride:count*stride])

	mid := (total + 1) / 2

	sibPage, sibNV, err := bt.allocLeaf()
	if err != nil {
		return err
	}

	nv.truncate(0)
	nv.appendSlots(buf[:mid*stride], mid)
	sibNV.appendSlots(buf[mid*stride:total*stride], total-mid)

	// Splice the sibling into the leaf doubly-linked list.
	sibNV.setRight(nv.right())
	if nv.right() != ptrNone {
		if _, rnv, err := bt.loadPage(nv.right()); err == nil {
			rnv.setLeft(sibPage.address)
		}
	}
	sibNV.setLeft(page.address)
	nv.setRight(sibPage.address)

	sepKR := nv.keyAt(nv.count() - 1)
	parentStride := make([]byte, nodeSlotStrideFor(bt.keySize))
	parentKR := newKeyRecordView(parentStride, bt.keySize)
	if err := copyKeyInto(bt.db, parentKR, sepKR); err != nil {
		return err
	}
	parentKR.setRecordIDRaw(sibPage.address)

	return bt.insertIntoParent(path, parentStride)
}

// insertIntoParent walks the path stack from the bottom up, inserting
// (or, on overflow, splitting and re-inserting) the given internal
// slot at each level. When the stack is exhausted the current root
// has split and a fresh internal root is created.
func (bt *Btree) insertIntoParent(path []pathFrame, slotBytes []byte) error {
	if len(path) == 0 {
		return bt.newRootAbove(slotBytes)
	}
	frame := path[len(path)-1]
	rest := path[:len(path)-1]
	insertPos := frame.childSlot + 1

	if frame.nv.count() < frame.nv.maxKeys() {
		if err := uncoupleAllCursors(frame.page, insertPos); err != nil {
			return err
		}
		frame.nv.insertSlotAt(insertPos, slotBytes)
		return nil
	}
	return bt.splitInternalAndInsert(frame.page, frame.nv, insertPos, slotBytes, rest)
}

// splitInternalAndInsert is insertIntoParent's overflow path: the
// median (key, child) pair MOVES up rather than being copied, since
// internal separators own no independent leaf presence.
func (bt *Btree) splitInternalAndInsert(page *Page, nv *nodeView, insertPos int, newStride []byte, path []pathFrame) error {
	bt.db.Stats.Splits++
	stride := nv.slotStride()
	count := nv.count()
	total := count + 1

	if err := uncoupleAllCursors(page, 0); err != nil {
		return err
	}

	buf := make([]byte, total*stride)
	existing := nv.rawSlots(count)
	copy(buf[:insertPos*stride], existing[:insertPos*stride])
	copy(buf[insertPos*stride:(insertPos+1)*stride], newStride)
	copy(buf[(insertPos+1)*stride:], existing[insertPos*stride:count*stride])

	mid := total / 2
	promoted := buf[mid*stride : (mid+1)*stride]
	leftRaw := buf[:mid*stride]
	rightRaw := buf[(mid+1)*stride : total*stride]

	sibPage, sibNV, err := bt.allocInternal()
	if err != nil {
		return err
	}

	promotedKR := newKeyRecordView(promoted, bt.keySize)
	sibNV.setPtrLeft(promotedKR.recordID)
	// The promoted pair now propagates upward; its child pointer must
	// name the freshly created sibling, not the subtree it used to
	// point at (that subtree became the sibling's ptrLeft above).
	promotedKR.setRecordIDRaw(sibPage.address)

	nv.truncate(0)
	nv.appendSlots(leftRaw, mid)
	sibNV.appendSlots(rightRaw, total-mid-1)

	// Splice the new sibling into the internal-node chain, same as a
	// leaf split does, so a later merge has real links to patch rather
	// than the zero value ptrNone.
	sibNV.setRight(nv.right())
	if nv.right() != ptrNone {
		if _, rnv, err := bt.loadPage(nv.right()); err == nil {
			rnv.setLeft(sibPage.address)
		}
	}
	sibNV.setLeft(page.address)
	nv.setRight(sibPage.address)

	return bt.insertIntoParent(path, promoted)
}

// newRootAbove is called when the current root split with no parent
// on the path: a fresh internal root is created above both halves.
func (bt *Btree) newRootAbove(slotBytes []byte) error {
	oldRootAddr := bt.db.rootAddress()
	oldPage, oldNV, err := bt.loadPage(oldRootAddr)
	if err != nil {
		return err
	}
	oldNV.setRoot(false)

	newPage, newNV, err := bt.allocInternal()
	if err != nil {
		return err
	}
	newNV.setRoot(true)
	newNV.setPtrLeft(oldPage.address)
	newNV.insertSlotAt(0, slotBytes)
	bt.db.setRootAddress(newPage.address)
	return nil
}

// nodeSlotStrideFor is a free function mirroring nodeView.slotStride
// for callers building a detached stride buffer before any page
// exists to host it.
func nodeSlotStrideFor(keySize uint16) int {
	return slotOverhead + int(keySize)
}
