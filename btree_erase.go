package upscaledb

// Erase removes key from the tree. With EraseDuplicate and a
// duplicate-flagged key holding more than one record, only the
// duplicate at index 0 is removed; otherwise the whole key, and any
// duplicate list it owns, is erased. Returns the record id that was
// removed (a blob id, an inline-encoded value reinterpreted as one,
// or for a whole duplicate-flagged key its duplicate-list id) and the
// key's flags at the time of removal, for callers that need to know
// how it had been stored.
func (bt *Btree) Erase(key []byte, flags EraseFlags) (uint64, keyFlags, error) {
	return bt.eraseAt(key, flags, 0)
}

// eraseAt is Erase with an explicit duplicate index; Erase calls it
// with index 0.
func (bt *Btree) eraseAt(key []byte, flags EraseFlags, dupIndex int) (uint64, keyFlags, error) {
	if len(key) == 0 {
		return 0, 0, newErr(ErrInvalidArgument, "btree: empty key")
	}
	if bt.isEmpty() {
		return 0, 0, newErr(ErrNotFound, "btree: empty tree")
	}

	var path []pathFrame
	addr := bt.db.rootAddress()
	var leafPage *Page
	var leafNV *nodeView
	for {
		p, nv, err := bt.loadPage(addr)
		if err != nil {
			return 0, 0, err
		}
		if nv.isLeaf() {
			leafPage, leafNV = p, nv
			break
		}
		slot, child, err := bt.traverseTree(nv, key)
		if err != nil {
			return 0, 0, err
		}
		path = append(path, pathFrame{page: p, nv: nv, childSlot: slot})
		addr = child
	}

	slot, exact, err := bt.getSlotIndex(leafNV, key)
	if err != nil {
		return 0, 0, err
	}
	if !exact {
		return 0, 0, newErr(ErrNotFound, "btree: key not found")
	}

	kr := leafNV.keyAt(slot)
	origFlags := kr.flags()

	if origFlags&keyDuplicate != 0 {
		removedID, err := bt.eraseDuplicateEntry(kr, flags, dupIndex)
		if err != nil {
			return 0, 0, err
		}
		if removedID != 0 {
			// Only one entry out of the list was removed; the key's
			// slot itself survives, so there is nothing to rebalance.
			return removedID, origFlags, nil
		}
		// Falls through: the whole key (and its now-empty duplicate
		// list) is being erased below.
	} else if origFlags&(keyTiny|keySmall|keyEmpty) == 0 {
		if err := bt.db.blobs.Free(kr.recordID); err != nil {
			return 0, 0, err
		}
	}

	removedRecordID := kr.recordID
	if err := kr.freeExtended(bt.db); err != nil {
		return 0, 0, err
	}

	if err := uncoupleAllCursors(leafPage, slot); err != nil {
		return 0, 0, err
	}
	leafNV.removeSlotAt(slot)

	if err := bt.rebalanceLeaf(path, leafPage, leafNV); err != nil {
		return 0, 0, err
	}
	return removedRecordID, origFlags, nil
}

// eraseDuplicateEntry handles the duplicate-list branch of erase.
// Returns a nonzero removed blob id when only one list entry was
// removed and the caller's slot survives; returns 0 (with the list
// freed) when the whole key must now be erased by the caller.
func (bt *Btree) eraseDuplicateEntry(kr *keyRecord, flags EraseFlags, dupIndex int) (uint64, error) {
	ids, err := bt.db.dups.get(kr.recordID)
	if err != nil {
		return 0, err
	}
	if flags&EraseDuplicate != 0 && len(ids) > 1 {
		if dupIndex < 0 || dupIndex >= len(ids) {
			return 0, newErr(ErrInvalidArgument, "btree: duplicate index out of range")
		}
		removed := ids[dupIndex]
		remaining := make([]uint64, 0, len(ids)-1)
		remaining = append(remaining, ids[:dupIndex]...)
		remaining = append(remaining, ids[dupIndex+1:]...)

		if len(remaining) == 1 {
			bt.db.dups.free(kr.recordID)
			kr.setFlags(kr.flags() &^ keyDuplicate)
			kr.setRecordIDRaw(remaining[0])
		} else if err := bt.db.dups.set(kr.recordID, remaining); err != nil {
			return 0, err
		}
		if err := bt.db.blobs.Free(removed); err != nil {
			return 0, err
		}
		return removed, nil
	}

	for _, id := range ids {
		if err := bt.db.blobs.Free(id); err != nil {
			return 0, err
		}
	}
	bt.db.dups.free(kr.recordID)
	return 0, nil
}

// rebalanceLeaf restores the minimum-occupancy invariant on a leaf
// that just lost a slot, borrowing from a sibling with slack or
// merging with one otherwise. A no-op on the root, which has no
// minimum (an empty root leaf simply means an empty tree).
func (bt *Btree) rebalanceLeaf(path []pathFrame, page *Page, nv *nodeView) error {
	if nv.isRoot() {
		return nil
	}
	max := nv.maxKeys()
	min := minKeys(max)
	if nv.count() >= min {
		return nil
	}

	parent := path[len(path)-1]
	rest := path[:len(path)-1]
	childIndex := parent.childSlot + 1

	hasLeft := childIndex > 0
	hasRight := childIndex < parent.nv.count()

	var leftPage, rightPage *Page
	var leftNV, rightNV *nodeView
	var err error
	if hasLeft {
		leftPage, leftNV, err = bt.loadPage(childAtIndex(parent.nv, childIndex-1))
		if err != nil {
			return err
		}
	}
	if hasRight {
		rightPage, rightNV, err = bt.loadPage(childAtIndex(parent.nv, childIndex+1))
		if err != nil {
			return err
		}
	}

	switch {
	case hasLeft && leftNV.count() > min:
		return bt.shiftFromLeftLeaf(parent, childIndex, leftPage, leftNV, page, nv)
	case hasRight && rightNV.count() > min:
		return bt.shiftFromRightLeaf(parent, childIndex, page, nv, rightPage, rightNV)
	case hasLeft:
		return bt.mergeLeaves(rest, parent, childIndex-1, leftPage, leftNV, page, nv)
	case hasRight:
		return bt.mergeLeaves(rest, parent, childIndex, page, nv, rightPage, rightNV)
	default:
		// Sole child of its parent; can only happen transiently while
		// the parent itself is being reduced toward a root collapse.
		return nil
	}
}

// rebalanceInternal is rebalanceLeaf's counterpart for internal nodes:
// borrowing rotates a (key, child) pair through the parent separator;
// merging pulls the parent separator down as the bridging key between
// the two combined children.
func (bt *Btree) rebalanceInternal(path []pathFrame, page *Page, nv *nodeView) error {
	if nv.isRoot() {
		if nv.count() == 0 {
			return bt.collapseRoot(page, nv)
		}
		return nil
	}
	max := nv.maxKeys()
	min := minKeys(max)
	if nv.count() >= min {
		return nil
	}

	parent := path[len(path)-1]
	rest := path[:len(path)-1]
	childIndex := parent.childSlot + 1

	hasLeft := childIndex > 0
	hasRight := childIndex < parent.nv.count()

	var leftPage, rightPage *Page
	var leftNV, rightNV *nodeView
	var err error
	if hasLeft {
		leftPage, leftNV, err = bt.loadPage(childAtIndex(parent.nv, childIndex-1))
		if err != nil {
			return err
		}
	}
	if hasRight {
		rightPage, rightNV, err = bt.loadPage(childAtIndex(parent.nv, childIndex+1))
		if err != nil {
			return err
		}
	}

	switch {
	case hasLeft && leftNV.count() > min:
		return bt.shiftFromLeftInternal(parent, childIndex, leftPage, leftNV, page, nv)
	case hasRight && rightNV.count() > min:
		return bt.shiftFromRightInternal(parent, childIndex, page, nv, rightPage, rightNV)
	case hasLeft:
		return bt.mergeInternal(rest, parent, childIndex-1, leftPage, leftNV, page, nv)
	case hasRight:
		return bt.mergeInternal(rest, parent, childIndex, page, nv, rightPage, rightNV)
	default:
		return nil
	}
}

// rebalanceAfterChildRemoval is called on the parent immediately after
// one of its children was merged away: the parent lost a (key, child)
// pair and may now itself be underfull, or (if root) empty.
func (bt *Btree) rebalanceAfterChildRemoval(rest []pathFrame, frame pathFrame) error {
	return bt.rebalanceInternal(rest, frame.page, frame.nv)
}

// collapseRoot handles a root that has been reduced to zero keys: a
// leaf root simply means the tree is now empty; an internal root's
// sole remaining child (its ptrLeft) is promoted to be the new root.
func (bt *Btree) collapseRoot(page *Page, nv *nodeView) error {
	if nv.isLeaf() {
		bt.db.setRootAddress(ptrNone)
		bt.db.cache.forget(page.address)
		return nil
	}
	childAddr := nv.ptrLeft()
	childPage, childNV, err := bt.loadPage(childAddr)
	if err != nil {
		return err
	}
	childNV.setRoot(true)
	bt.db.setRootAddress(childPage.address)
	bt.db.cache.forget(page.address)
	return nil
}
