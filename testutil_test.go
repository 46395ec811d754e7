package upscaledb

import "testing"

// newTestDB returns an in-memory Database configured with a small page
// size and key size so tests can force splits/merges/rebalances with a
// handful of keys instead of thousands.
func newTestDB(t *testing.T, pageSize uint32, keySize uint16) *Database {
	t.Helper()
	cfg := Config{
		PageSize:  pageSize,
		KeySize:   keySize,
		CacheSize: 64,
	}
	db, err := Create("", cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// walkLeaves collects every key/record pair across all leaves in
// left-to-right order, by following the leaf sibling chain from the
// first leaf.
func walkLeaves(t *testing.T, db *Database) [][2]string {
	t.Helper()
	page, nv, err := db.tree.firstLeaf()
	if err != nil {
		t.Fatalf("firstLeaf: %v", err)
	}
	var out [][2]string
	for page != nil {
		for i := 0; i < nv.count(); i++ {
			kr := nv.keyAt(i)
			kb, err := kr.resolve(db)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			rec, err := kr.recordBytes(db, 0)
			if err != nil {
				t.Fatalf("recordBytes: %v", err)
			}
			out = append(out, [2]string{string(kb), string(rec)})
		}
		right := nv.right()
		if right == ptrNone {
			break
		}
		page, nv, err = db.tree.loadPage(right)
		if err != nil {
			t.Fatalf("loadPage: %v", err)
		}
	}
	return out
}
