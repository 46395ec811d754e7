package upscaledb

// childAtIndex maps a 0-based child index (0 = ptrLeft, i = childPtr(i-1)
// for i>=1) to that child's page address.
func childAtIndex(nv *nodeView, idx int) uint64 {
	if idx == 0 {
		return nv.ptrLeft()
	}
	return nv.childPtr(idx - 1)
}

// shiftFromLeftLeaf borrows leftNV's last slot onto the front of nv,
// then rewrites the parent separator between them to leftNV's new
// last key (the new upper bound of the shrunken left subtree).
func (bt *Btree) shiftFromLeftLeaf(parent pathFrame, childIndex int, leftPage *Page, leftNV *nodeView, page *Page, nv *nodeView) error {
	bt.db.Stats.Shifts++
	lastIdx := leftNV.count() - 1
	moved := append([]byte(nil), leftNV.slotBytes(lastIdx)...)

	if err := uncoupleAllCursors(leftPage, lastIdx); err != nil {
		return err
	}
	leftNV.removeSlotAt(lastIdx)

	if err := uncoupleAllCursors(page, 0); err != nil {
		return err
	}
	nv.insertSlotAt(0, moved)

	sepIndex := childIndex - 1
	sepKR := parent.nv.keyAt(sepIndex)
	newBoundary := leftNV.keyAt(leftNV.count() - 1)
	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	return replaceKey(bt.db, sepKR, newBoundary, internalKey)
}

// shiftFromRightLeaf is shiftFromLeftLeaf's mirror: rightNV's first
// slot moves onto the tail of nv, and the separator between them
// becomes nv's new last key.
func (bt *Btree) shiftFromRightLeaf(parent pathFrame, childIndex int, page *Page, nv *nodeView, rightPage *Page, rightNV *nodeView) error {
	bt.db.Stats.Shifts++
	moved := append([]byte(nil), rightNV.slotBytes(0)...)

	if err := uncoupleAllCursors(rightPage, 0); err != nil {
		return err
	}
	rightNV.removeSlotAt(0)

	insertPos := nv.count()
	if err := uncoupleAllCursors(page, insertPos); err != nil {
		return err
	}
	nv.insertSlotAt(insertPos, moved)

	sepIndex := childIndex
	sepKR := parent.nv.keyAt(sepIndex)
	newBoundary := nv.keyAt(nv.count() - 1)
	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	return replaceKey(bt.db, sepKR, newBoundary, internalKey)
}

// mergeLeaves appends rightNV's slots onto leftNV, splices leftNV
// directly to rightNV's right sibling, drops the now-obsolete
// separator (and its blob, if extended) from the parent, and forgets
// rightPage. May recurse into the parent's own rebalance if the
// parent itself falls below its minimum.
func (bt *Btree) mergeLeaves(rest []pathFrame, parent pathFrame, sepIndex int, leftPage *Page, leftNV *nodeView, rightPage *Page, rightNV *nodeView) error {
	bt.db.Stats.Merges++
	n := rightNV.count()
	raw := append([]byte(nil), rightNV.rawSlots(n)...)

	if err := uncoupleAllCursors(rightPage, 0); err != nil {
		return err
	}
	if err := uncoupleAllCursors(leftPage, leftNV.count()); err != nil {
		return err
	}
	leftNV.appendSlots(raw, n)

	leftNV.setRight(rightNV.right())
	if rightNV.right() != ptrNone {
		if _, rrnv, err := bt.loadPage(rightNV.right()); err == nil {
			rrnv.setLeft(leftPage.address)
		}
	}

	sepKR := parent.nv.keyAt(sepIndex)
	if err := sepKR.freeExtended(bt.db); err != nil {
		return err
	}
	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	parent.nv.removeSlotAt(sepIndex)

	bt.db.cache.forget(rightPage.address)

	return bt.rebalanceAfterChildRemoval(rest, parent)
}

// shiftFromLeftInternal rotates leftNV's last (key, child) pair up
// through the parent separator: the separator moves down to become
// nv's new first key (paired with nv's old ptrLeft), leftNV's last key
// moves up into the parent, and leftNV's last child becomes nv's new
// ptrLeft.
func (bt *Btree) shiftFromLeftInternal(parent pathFrame, childIndex int, leftPage *Page, leftNV *nodeView, page *Page, nv *nodeView) error {
	bt.db.Stats.Shifts++
	sepIndex := childIndex - 1
	sepKR := parent.nv.keyAt(sepIndex)

	lastIdx := leftNV.count() - 1
	lastKR := leftNV.keyAt(lastIdx)
	movedChild := lastKR.recordID

	stride := make([]byte, nv.slotStride())
	newFirst := newKeyRecordView(stride, bt.keySize)
	if err := copyKeyInto(bt.db, newFirst, sepKR); err != nil {
		return err
	}
	newFirst.setRecordIDRaw(nv.ptrLeft())

	if err := uncoupleAllCursors(page, 0); err != nil {
		return err
	}
	nv.insertSlotAt(0, stride)
	nv.setPtrLeft(movedChild)

	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	if err := replaceKey(bt.db, sepKR, lastKR, internalKey); err != nil {
		return err
	}

	if err := uncoupleAllCursors(leftPage, lastIdx); err != nil {
		return err
	}
	leftNV.removeSlotAt(lastIdx)
	return nil
}

// shiftFromRightInternal is shiftFromLeftInternal's mirror.
func (bt *Btree) shiftFromRightInternal(parent pathFrame, childIndex int, page *Page, nv *nodeView, rightPage *Page, rightNV *nodeView) error {
	bt.db.Stats.Shifts++
	sepIndex := childIndex
	sepKR := parent.nv.keyAt(sepIndex)

	firstKR := rightNV.keyAt(0)
	movedChild := rightNV.ptrLeft()

	stride := make([]byte, nv.slotStride())
	newLast := newKeyRecordView(stride, bt.keySize)
	if err := copyKeyInto(bt.db, newLast, sepKR); err != nil {
		return err
	}
	newLast.setRecordIDRaw(movedChild)

	insertPos := nv.count()
	if err := uncoupleAllCursors(page, insertPos); err != nil {
		return err
	}
	nv.insertSlotAt(insertPos, stride)

	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	if err := replaceKey(bt.db, sepKR, firstKR, internalKey); err != nil {
		return err
	}

	rightNV.setPtrLeft(firstKR.recordID)
	if err := uncoupleAllCursors(rightPage, 0); err != nil {
		return err
	}
	rightNV.removeSlotAt(0)
	return nil
}

// mergeInternal combines leftNV, a bridging copy of the parent
// separator (paired with rightNV's old ptrLeft), and rightNV's own
// slots into leftNV, then drops the separator from the parent and
// forgets rightPage.
func (bt *Btree) mergeInternal(rest []pathFrame, parent pathFrame, sepIndex int, leftPage *Page, leftNV *nodeView, rightPage *Page, rightNV *nodeView) error {
	bt.db.Stats.Merges++
	sepKR := parent.nv.keyAt(sepIndex)

	stride := make([]byte, leftNV.slotStride())
	bridge := newKeyRecordView(stride, bt.keySize)
	if err := copyKeyInto(bt.db, bridge, sepKR); err != nil {
		return err
	}
	bridge.setRecordIDRaw(rightNV.ptrLeft())

	if err := uncoupleAllCursors(leftPage, leftNV.count()); err != nil {
		return err
	}
	leftNV.insertSlotAt(leftNV.count(), stride)

	n := rightNV.count()
	raw := append([]byte(nil), rightNV.rawSlots(n)...)
	if err := uncoupleAllCursors(rightPage, 0); err != nil {
		return err
	}
	leftNV.appendSlots(raw, n)

	// Splice leftNV directly to rightNV's right sibling, same as a leaf
	// merge does, so the internal chain never dangles to the page being
	// forgotten below.
	leftNV.setRight(rightNV.right())
	if rightNV.right() != ptrNone {
		if _, rrnv, err := bt.loadPage(rightNV.right()); err == nil {
			rrnv.setLeft(leftPage.address)
		}
	}

	if err := sepKR.freeExtended(bt.db); err != nil {
		return err
	}
	if err := uncoupleAllCursors(parent.page, sepIndex); err != nil {
		return err
	}
	parent.nv.removeSlotAt(sepIndex)

	bt.db.cache.forget(rightPage.address)

	return bt.rebalanceAfterChildRemoval(rest, parent)
}
