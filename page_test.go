package upscaledb

import "testing"

func TestPageCRCRoundTrip(t *testing.T) {
	dev := NewMemDevice(256, DeviceEnableCRC32)
	p := newPage(nil, 256, false)
	if err := p.alloc(dev, true); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	copy(p.data[4:], []byte("hello world"))
	p.markDirty()
	if err := p.flush(dev); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p2 := newPage(nil, 256, false)
	if err := p2.fetch(dev, p.address); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(p2.data[4:15]) != "hello world" {
		t.Fatalf("payload mismatch: %q", p2.data[4:15])
	}
}

func TestPageCRCDetectsCorruption(t *testing.T) {
	dev := NewMemDevice(256, DeviceEnableCRC32)
	p := newPage(nil, 256, false)
	if err := p.alloc(dev, true); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	p.markDirty()
	if err := p.flush(dev); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p2 := newPage(nil, 256, false)
	if err := p2.fetch(dev, p.address); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	p2.data[200] ^= 0xFF
	if err := p2.verifyCRC(); err == nil {
		t.Fatalf("expected CRC mismatch to be detected")
	}
}

func TestPageDeepCopyDataFirstCallReturnsNil(t *testing.T) {
	p := newPage(nil, 64, true)
	if shadow := p.deepCopyData(); shadow != nil {
		t.Fatalf("first deepCopyData call should return nil, got %v", shadow.Bytes())
	}
	copy(p.data, []byte("modified"))
	shadow := p.deepCopyData()
	if shadow == nil {
		t.Fatalf("second deepCopyData call should return a shadow")
	}
	if string(shadow.Bytes()[:8]) != "modified" {
		t.Fatalf("shadow should hold the pre-second-mutation bytes")
	}
}

// TestPageCRCSpanExcludesHeader checks that the hashed span starts
// exactly at the payload boundary: mutating the header's own bytes
// (which stampCRC itself does on every stamp) must never change what
// verifyCRC recomputes over.
func TestPageCRCSpanExcludesHeader(t *testing.T) {
	p := newPage(nil, 256, false)
	for i := range p.data {
		p.data[i] = byte(i)
	}
	before := crc32PageHash(p.crcHashSpan(), 0)
	// Perturb only header bytes (offsets 0-3).
	p.data[0] ^= 0xFF
	p.data[1] ^= 0xFF
	p.data[2] ^= 0xFF
	p.data[3] ^= 0xFF
	after := crc32PageHash(p.crcHashSpan(), 0)
	if before != after {
		t.Fatalf("crcHashSpan overlaps the header: changing header bytes changed the hash")
	}
}

func TestPageCursorList(t *testing.T) {
	p := newPage(nil, 64, true)
	c1 := &Cursor{}
	c2 := &Cursor{}
	n1 := p.enlistCursor(c1)
	n2 := p.enlistCursor(c2)
	if !p.hasCursors() {
		t.Fatalf("expected hasCursors to be true")
	}
	p.delistCursor(n1)
	if !p.hasCursors() {
		t.Fatalf("expected hasCursors to still be true after removing one of two")
	}
	p.delistCursor(n2)
	if p.hasCursors() {
		t.Fatalf("expected hasCursors to be false after removing both")
	}
}
