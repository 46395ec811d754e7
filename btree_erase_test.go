package upscaledb

import (
	"fmt"
	"testing"
)

func TestEraseBasic(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	for _, k := range []string{"a", "b", "c"} {
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}
	if err := db.Erase([]byte("b"), 0); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, err := db.Find([]byte("b")); err == nil {
		t.Fatalf("expected NotFound for erased key")
	}
	for _, k := range []string{"a", "c"} {
		if _, err := db.Find([]byte(k)); err != nil {
			t.Fatalf("Find(%q) after unrelated erase: %v", k, err)
		}
	}
}

func TestEraseNotFound(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	if err := db.Insert([]byte("a"), []byte("a"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := db.Erase([]byte("missing"), 0)
	if e, ok := err.(*Error); !ok || e.Code != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEraseOnEmptyTree(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	err := db.Erase([]byte("anything"), 0)
	if e, ok := err.(*Error); !ok || e.Code != ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty tree, got %v", err)
	}
}

func TestEraseEmptyKeyRejected(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	err := db.Erase(nil, 0)
	if e, ok := err.(*Error); !ok || e.Code != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for empty key, got %v", err)
	}
}

func TestEraseAllKeysEmptiesTree(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	keys := []string{"a", "b", "c", "d", "e"}
	for _, k := range keys {
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}
	for _, k := range keys {
		if err := db.Erase([]byte(k), 0); err != nil {
			t.Fatalf("Erase(%q): %v", k, err)
		}
	}
	for _, k := range keys {
		if _, err := db.Find([]byte(k)); err == nil {
			t.Fatalf("Find(%q) should fail after erasing everything", k)
		}
	}
	// The root leaf is now empty (it stays in place as the root); a
	// fresh insert must succeed exactly as it would on a brand new
	// database.
	if err := db.Insert([]byte("fresh"), []byte("v"), 0); err != nil {
		t.Fatalf("Insert after emptying tree: %v", err)
	}
	got, err := db.Find([]byte("fresh"))
	if err != nil || string(got) != "v" {
		t.Fatalf("Find(fresh) = %q, %v", got, err)
	}
}

// TestEraseWithSplitsAndMergesPreservesOrder forces many leaf and
// internal splits on insert, then erases half the keys (forcing
// shifts and merges on the way back up), and checks every survivor is
// still findable, every erased key is gone, and the leaf chain is
// still in sorted order with no duplication or loss.
func TestEraseWithSplitsAndMergesPreservesOrder(t *testing.T) {
	db := newTestDB(t, 126, 8) // maxKeys() == 4
	const n = 60
	all := make([]string, n)
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("k%04d", i)
		all[i] = k
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	erased := map[string]bool{}
	for i := 0; i < n; i += 2 {
		if err := db.Erase([]byte(all[i]), 0); err != nil {
			t.Fatalf("Erase(%q): %v", all[i], err)
		}
		erased[all[i]] = true
	}

	for _, k := range all {
		got, err := db.Find([]byte(k))
		if erased[k] {
			if err == nil {
				t.Fatalf("Find(%q) should fail, it was erased", k)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Find(%q): %v", k, err)
		}
		if string(got) != k {
			t.Fatalf("Find(%q) = %q", k, got)
		}
	}

	leaves := walkLeaves(t, db)
	if len(leaves) != n/2 {
		t.Fatalf("got %d surviving entries in leaf order, want %d", len(leaves), n/2)
	}
	prev := ""
	for i, kv := range leaves {
		if erased[kv[0]] {
			t.Fatalf("erased key %q still present in leaf chain", kv[0])
		}
		if i > 0 && kv[0] <= prev {
			t.Fatalf("leaf order violated: %q after %q", kv[0], prev)
		}
		prev = kv[0]
	}
}

// TestEraseDuplicateDemotesThenClears exercises the full duplicate
// lifecycle: three duplicates, remove one at a time via EraseDuplicate
// (demoting out of duplicate mode once only one remains), then erase
// the key outright.
func TestEraseDuplicateDemotesThenClears(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	if err := db.Insert([]byte("k"), []byte("v1"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Insert([]byte("k"), []byte("v2"), InsertDuplicate); err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if err := db.Insert([]byte("k"), []byte("v3"), InsertDuplicate); err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}

	cur := db.NewCursor()
	defer cur.Close()
	if _, _, err := cur.Find([]byte("k"), nil, false, nil, ExactMatch); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if n, err := cur.GetRecordCount(); err != nil || n != 3 {
		t.Fatalf("GetRecordCount = %d, %v", n, err)
	}
	cur.SetToNil()

	if err := db.Erase([]byte("k"), EraseDuplicate); err != nil {
		t.Fatalf("Erase duplicate 1: %v", err)
	}
	if _, _, err := cur.Find([]byte("k"), nil, false, nil, ExactMatch); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if n, err := cur.GetRecordCount(); err != nil || n != 2 {
		t.Fatalf("GetRecordCount after one erase = %d, %v", n, err)
	}
	cur.SetToNil()

	// Removing a second duplicate demotes the key back to a plain
	// single-record entry.
	if err := db.Erase([]byte("k"), EraseDuplicate); err != nil {
		t.Fatalf("Erase duplicate 2: %v", err)
	}
	got, err := db.Find([]byte("k"))
	if err != nil {
		t.Fatalf("Find after demotion: %v", err)
	}
	if string(got) != "v3" {
		t.Fatalf("got %q, want v3 (the one remaining record)", got)
	}

	if err := db.Erase([]byte("k"), 0); err != nil {
		t.Fatalf("Erase remaining key: %v", err)
	}
	if _, err := db.Find([]byte("k")); err == nil {
		t.Fatalf("expected NotFound after erasing the demoted key")
	}
}

// TestEraseInterleavedWithCursorReuse checks that a cursor left
// pointing at a key that is later merged away by unrelated erases
// elsewhere in the tree transparently recovers via lazy re-coupling
// rather than returning stale data.
func TestEraseInterleavedWithCursorReuse(t *testing.T) {
	db := newTestDB(t, 126, 8)
	const n = 40
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("k%04d", i)
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	cur := db.NewCursor()
	defer cur.Close()
	target := "k0020"
	if _, _, err := cur.Find([]byte(target), nil, false, nil, ExactMatch); err != nil {
		t.Fatalf("Find: %v", err)
	}

	// Erase a run of neighboring keys, which will trigger merges and
	// shifts on the leaf cur is coupled to.
	for i := 15; i < 25; i++ {
		if i == 20 {
			continue // leave the cursor's own key alive
		}
		k := fmt.Sprintf("k%04d", i)
		if err := db.Erase([]byte(k), 0); err != nil {
			t.Fatalf("Erase(%q): %v", k, err)
		}
	}

	// Any restructuring near the cursor's slot uncouples it (see
	// uncoupleAllCursors); GetRecordSize must transparently recouple
	// by re-finding the cursor's saved key rather than erroring.
	size, err := cur.GetRecordSize()
	if err != nil {
		t.Fatalf("GetRecordSize after neighboring erases: %v", err)
	}
	if size != len(target) {
		t.Fatalf("GetRecordSize = %d, want %d", size, len(target))
	}

	got, err := db.Find([]byte(target))
	if err != nil {
		t.Fatalf("Find(%q) after neighboring erases: %v", target, err)
	}
	if string(got) != target {
		t.Fatalf("got %q", got)
	}
}
