package upscaledb

import "testing"

func TestKeyRecordInlineRecordEncodings(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	stride := make([]byte, slotOverhead+16)
	kr := newKeyRecordView(stride, 16)

	cases := []struct {
		name  string
		value []byte
	}{
		{"empty", nil},
		{"tiny", []byte("hi")},
		{"tiny-max", []byte("1234567")},
		{"small", []byte("12345678")},
		{"big", []byte("this value is longer than eight bytes")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := kr.setRecord(db, c.value); err != nil {
				t.Fatalf("setRecord: %v", err)
			}
			got, err := kr.recordBytes(db, 0)
			if err != nil {
				t.Fatalf("recordBytes: %v", err)
			}
			if string(got) != string(c.value) {
				t.Fatalf("got %q want %q", got, c.value)
			}
		})
	}
}

func TestKeyRecordExtendedKey(t *testing.T) {
	db := newTestDB(t, 4096, 8)
	stride := make([]byte, slotOverhead+8)
	kr := newKeyRecordView(stride, 8)

	long := []byte("this key is far longer than eight bytes")
	if err := kr.setKey(db, long, 0); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if kr.flags()&keyExtended == 0 {
		t.Fatalf("expected keyExtended to be set")
	}
	got, err := kr.resolve(db)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(got) != string(long) {
		t.Fatalf("got %q want %q", got, long)
	}
}

func TestCopyKeyIntoDeepCopiesBlob(t *testing.T) {
	db := newTestDB(t, 4096, 8)
	srcStride := make([]byte, slotOverhead+8)
	src := newKeyRecordView(srcStride, 8)
	long := []byte("another key longer than eight bytes")
	if err := src.setKey(db, long, 0); err != nil {
		t.Fatalf("setKey: %v", err)
	}

	dstStride := make([]byte, slotOverhead+8)
	dst := newKeyRecordView(dstStride, 8)
	if err := copyKeyInto(db, dst, src); err != nil {
		t.Fatalf("copyKeyInto: %v", err)
	}

	if dst.blobID() == src.blobID() {
		t.Fatalf("copyKeyInto aliased the source blob id")
	}
	got, err := dst.resolve(db)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(got) != string(long) {
		t.Fatalf("got %q want %q", got, long)
	}

	// Freeing the source's blob must not affect the copy's.
	if err := src.freeExtended(db); err != nil {
		t.Fatalf("freeExtended: %v", err)
	}
	got2, err := dst.resolve(db)
	if err != nil {
		t.Fatalf("resolve after source freed: %v", err)
	}
	if string(got2) != string(long) {
		t.Fatalf("copy became invalid after freeing source: got %q", got2)
	}
}

// failingAllocBlobStore wraps a real BlobStore but fails every Alloc
// call once armed, to exercise rollback paths that only trigger on an
// allocation failure.
type failingAllocBlobStore struct {
	BlobStore
	fail bool
}

func (s *failingAllocBlobStore) Alloc(data []byte) (uint64, error) {
	if s.fail {
		return 0, newErr(ErrOutOfMemory, "test: forced Alloc failure")
	}
	return s.BlobStore.Alloc(data)
}

// TestReplaceKeyRollsBackOnFailedBlobAlloc checks that replaceKey's
// extended-blob path leaves dst completely untouched when allocating
// the new blob fails: the old ordering freed dst's blob and wrote its
// new flags/size before attempting the allocation, corrupting dst on
// failure instead of leaving it intact.
func TestReplaceKeyRollsBackOnFailedBlobAlloc(t *testing.T) {
	db := newTestDB(t, 4096, 8)
	fs := &failingAllocBlobStore{BlobStore: db.blobs}
	db.blobs = fs

	dstStride := make([]byte, slotOverhead+8)
	dst := newKeyRecordView(dstStride, 8)
	original := []byte("original key longer than eight bytes")
	if err := dst.setKey(db, original, 0); err != nil {
		t.Fatalf("setKey(dst): %v", err)
	}
	origBlobID := dst.blobID()

	srcStride := make([]byte, slotOverhead+8)
	src := newKeyRecordView(srcStride, 8)
	replacement := []byte("replacement key also longer than eight")
	if err := src.setKey(db, replacement, 0); err != nil {
		t.Fatalf("setKey(src): %v", err)
	}

	fs.fail = true
	err := replaceKey(db, dst, src, 0)
	if err == nil {
		t.Fatalf("expected replaceKey to fail")
	}

	if dst.flags()&keyExtended == 0 {
		t.Fatalf("dst lost its keyExtended flag on a failed replace")
	}
	if dst.blobID() != origBlobID {
		t.Fatalf("dst blob id changed on a failed replace: got %d want %d", dst.blobID(), origBlobID)
	}
	fs.fail = false
	got, err := dst.resolve(db)
	if err != nil {
		t.Fatalf("resolve(dst) after failed replace: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("dst content corrupted by failed replace: got %q want %q", got, original)
	}
}

func TestPromoteToBlob(t *testing.T) {
	db := newTestDB(t, 4096, 8)
	stride := make([]byte, slotOverhead+8)
	kr := newKeyRecordView(stride, 8)

	if err := kr.setRecord(db, []byte("hi")); err != nil {
		t.Fatalf("setRecord: %v", err)
	}
	id, err := kr.promoteToBlob(db)
	if err != nil {
		t.Fatalf("promoteToBlob: %v", err)
	}
	got, err := db.blobs.Read(id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("got %q want %q", got, "hi")
	}
}
