package upscaledb

import "encoding/binary"

// nodeHeaderSize is the size, in bytes, of a node's header within the
// page payload: count(2) + flags(2) + ptr_left(8) + left(8) + right(8).
const nodeHeaderSize = 28

// nodeFlags are the bits stored in a node header.
type nodeFlags uint16

const (
	nodeLeaf nodeFlags = 1 << iota
	nodeRoot
)

// slotOverhead is the fixed portion of a slot stride that isn't the
// inline key bytes: flags(1) + key_size(2) + record_id(8).
const slotOverhead = 1 + 2 + 8

// nodeView interprets a Page's payload bytes as a B+tree node: a slot
// array of key records, left/right neighbor pointers, a leftmost-child
// pointer, a key count, and a node type. It holds no data of its own
// beyond a back-reference to the Page and the tree-wide key size; all
// state lives in the page's bytes.
type nodeView struct {
	page    *Page
	keySize uint16
}

func newNodeView(p *Page, keySize uint16) *nodeView {
	return &nodeView{page: p, keySize: keySize}
}

func (n *nodeView) buf() []byte {
	return n.page.payload()
}

func (n *nodeView) slotStride() int {
	return slotOverhead + int(n.keySize)
}

// maxKeys returns the maximum number of slots this node's page can
// hold given the tree's key size.
func (n *nodeView) maxKeys() int {
	avail := int(n.page.size) - pageHeaderSize - nodeHeaderSize
	if n.page.withoutHeader {
		avail = int(n.page.size) - nodeHeaderSize
	}
	return avail / n.slotStride()
}

// minKeys is the rebalance threshold: half of maxKeys, rounded down.
func minKeys(maxKeys int) int {
	return maxKeys / 2
}

func (n *nodeView) count() int {
	return int(binary.LittleEndian.Uint16(n.buf()[0:2]))
}

func (n *nodeView) setCount(c int) {
	binary.LittleEndian.PutUint16(n.buf()[0:2], uint16(c))
	n.page.markDirty()
}

func (n *nodeView) flags() nodeFlags {
	return nodeFlags(binary.LittleEndian.Uint16(n.buf()[2:4]))
}

func (n *nodeView) setFlags(f nodeFlags) {
	binary.LittleEndian.PutUint16(n.buf()[2:4], uint16(f))
	n.page.markDirty()
}

func (n *nodeView) isLeaf() bool { return n.flags()&nodeLeaf != 0 }
func (n *nodeView) isRoot() bool { return n.flags()&nodeRoot != 0 }

func (n *nodeView) setRoot(root bool) {
	f := n.flags()
	if root {
		f |= nodeRoot
	} else {
		f &^= nodeRoot
	}
	n.setFlags(f)
}

func (n *nodeView) ptrLeft() uint64 {
	return binary.LittleEndian.Uint64(n.buf()[4:12])
}

func (n *nodeView) setPtrLeft(v uint64) {
	binary.LittleEndian.PutUint64(n.buf()[4:12], v)
	n.page.markDirty()
}

func (n *nodeView) left() uint64 {
	return binary.LittleEndian.Uint64(n.buf()[12:20])
}

func (n *nodeView) setLeft(v uint64) {
	binary.LittleEndian.PutUint64(n.buf()[12:20], v)
	n.page.markDirty()
}

func (n *nodeView) right() uint64 {
	return binary.LittleEndian.Uint64(n.buf()[20:28])
}

func (n *nodeView) setRight(v uint64) {
	binary.LittleEndian.PutUint64(n.buf()[20:28], v)
	n.page.markDirty()
}

// init sets up an empty node header of the given kind. Address 0 is
// used as the sentinel "no sibling"/"no child" value throughout, since
// address 0 is reserved for the very first page a device ever hands
// out (the meta/root bootstrap page) and is never a valid leaf/branch
// target.
func (n *nodeView) init(leaf bool) {
	binary.LittleEndian.PutUint16(n.buf()[0:2], 0)
	var f nodeFlags
	if leaf {
		f |= nodeLeaf
	}
	binary.LittleEndian.PutUint16(n.buf()[2:4], uint16(f))
	binary.LittleEndian.PutUint64(n.buf()[4:12], 0)
	binary.LittleEndian.PutUint64(n.buf()[12:20], 0)
	binary.LittleEndian.PutUint64(n.buf()[20:28], 0)
	n.page.markDirty()
}

// slotOffset returns the byte offset, within the payload, of slot i.
func (n *nodeView) slotOffset(i int) int {
	return nodeHeaderSize + i*n.slotStride()
}

// slotBytes returns the raw stride bytes for slot i.
func (n *nodeView) slotBytes(i int) []byte {
	off := n.slotOffset(i)
	return n.buf()[off : off+n.slotStride()]
}

// keyAt returns a key record view over slot i.
func (n *nodeView) keyAt(i int) *keyRecord {
	kr := &keyRecord{raw: n.slotBytes(i), keySize: n.keySize, page: n.page}
	kr.recordID = kr.readRecordID()
	return kr
}

// childPtr returns the child page address referenced by slot i's
// record id (branch nodes only; leaves store record ids, not
// children).
func (n *nodeView) childPtr(i int) uint64 {
	return n.keyAt(i).recordID
}

// insertSlotAt shifts slots [i, count) up by one stride and writes
// stride bytes into the freed slot i. Caller must have already checked
// count() < maxKeys().
func (n *nodeView) insertSlotAt(i int, stride []byte) {
	c := n.count()
	buf := n.buf()
	str := n.slotStride()
	if i < c {
		src := n.slotOffset(i)
		dst := n.slotOffset(i + 1)
		copy(buf[dst:dst+(c-i)*str], buf[src:src+(c-i)*str])
	}
	off := n.slotOffset(i)
	copy(buf[off:off+str], stride)
	n.setCount(c + 1)
}

// removeSlotAt shifts slots (i, count) down by one stride, dropping
// slot i.
func (n *nodeView) removeSlotAt(i int) {
	c := n.count()
	buf := n.buf()
	str := n.slotStride()
	if i < c-1 {
		src := n.slotOffset(i + 1)
		dst := n.slotOffset(i)
		copy(buf[dst:dst+(c-1-i)*str], buf[src:src+(c-1-i)*str])
	}
	n.setCount(c - 1)
}

// appendSlots copies count strides worth of raw slot bytes onto the
// tail of this node, starting at its current count.
func (n *nodeView) appendSlots(raw []byte, count int) {
	c := n.count()
	off := n.slotOffset(c)
	str := n.slotStride()
	copy(n.buf()[off:off+count*str], raw[:count*str])
	n.setCount(c + count)
}

// rawSlots returns the raw bytes for the first count slots, suitable
// for passing to appendSlots on another node during a merge or shift.
func (n *nodeView) rawSlots(count int) []byte {
	off := n.slotOffset(0)
	str := n.slotStride()
	return n.buf()[off : off+count*str]
}

// truncate sets the node's count without touching slot bytes, used
// when a split rebuilds a node's slot array from scratch.
func (n *nodeView) truncate(count int) {
	n.setCount(count)
}
