package upscaledb

import (
	"fmt"
	"testing"
)

func TestCursorMoveFirstLastNextPrevious(t *testing.T) {
	db := newTestDB(t, 126, 8)
	const n = 20
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("k%04d", i)
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	cur := db.NewCursor()
	defer cur.Close()

	key, rec, err := cur.Move(nil, true, nil, First)
	if err != nil {
		t.Fatalf("Move(First): %v", err)
	}
	if string(key) != "k0000" || string(rec) != "k0000" {
		t.Fatalf("got %q/%q, want k0000/k0000", key, rec)
	}

	for i := 1; i < n; i++ {
		key, _, err := cur.Move(nil, false, nil, Next)
		if err != nil {
			t.Fatalf("Move(Next) at %d: %v", i, err)
		}
		want := fmt.Sprintf("k%04d", i)
		if string(key) != want {
			t.Fatalf("Move(Next) at %d = %q, want %q", i, key, want)
		}
	}
	if _, _, err := cur.Move(nil, false, nil, Next); err == nil {
		t.Fatalf("expected NotFound moving past the end")
	}

	key, _, err = cur.Move(nil, false, nil, Last)
	if err != nil {
		t.Fatalf("Move(Last): %v", err)
	}
	if string(key) != fmt.Sprintf("k%04d", n-1) {
		t.Fatalf("Move(Last) = %q", key)
	}
	for i := n - 2; i >= 0; i-- {
		key, _, err := cur.Move(nil, false, nil, Previous)
		if err != nil {
			t.Fatalf("Move(Previous) at %d: %v", i, err)
		}
		want := fmt.Sprintf("k%04d", i)
		if string(key) != want {
			t.Fatalf("Move(Previous) at %d = %q, want %q", i, key, want)
		}
	}
	if _, _, err := cur.Move(nil, false, nil, Previous); err == nil {
		t.Fatalf("expected NotFound moving before the beginning")
	}
}

func TestCursorFindMatchModes(t *testing.T) {
	db := newTestDB(t, 126, 8)
	for _, k := range []string{"b", "d", "f", "h"} {
		if err := db.Insert([]byte(k), []byte(k), 0); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	cur := db.NewCursor()
	defer cur.Close()

	cases := []struct {
		flags CursorFlags
		key   string
		want  string
	}{
		{ExactMatch, "d", "d"},
		{GeMatch, "c", "d"},
		{GeMatch, "d", "d"},
		{GtMatch, "d", "f"},
		{LeMatch, "e", "d"},
		{LeMatch, "d", "d"},
		{LtMatch, "d", "b"},
	}
	for _, c := range cases {
		got, _, err := cur.Find([]byte(c.key), nil, false, nil, c.flags)
		if err != nil {
			t.Fatalf("Find(%q, %d): %v", c.key, c.flags, err)
		}
		if string(got) != c.want {
			t.Fatalf("Find(%q, %d) = %q, want %q", c.key, c.flags, got, c.want)
		}
	}

	if _, _, err := cur.Find([]byte("z"), nil, false, nil, GeMatch); err == nil {
		t.Fatalf("expected NotFound for GeMatch past the end")
	}
	if _, _, err := cur.Find([]byte("a"), nil, false, nil, LeMatch); err == nil {
		t.Fatalf("expected NotFound for LeMatch before the beginning")
	}
}

func TestCursorDuplicatesAndOverwrite(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	if err := db.Insert([]byte("k"), []byte("first"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Insert([]byte("k"), []byte("second"), InsertDuplicate); err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if err := db.Insert([]byte("k"), []byte("third"), InsertDuplicate); err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}

	cur := db.NewCursor()
	defer cur.Close()
	_, _, err := cur.Find([]byte("k"), nil, false, nil, ExactMatch)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	n, err := cur.GetRecordCount()
	if err != nil {
		t.Fatalf("GetRecordCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d duplicates, want 3", n)
	}

	if err := cur.Overwrite([]byte("first-updated"), 0); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}
	_, rec, err := cur.Find([]byte("k"), nil, true, nil, ExactMatch)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if string(rec) != "first-updated" {
		t.Fatalf("got %q", rec)
	}
}

func TestCursorCloneAndSetToNil(t *testing.T) {
	db := newTestDB(t, 4096, 16)
	if err := db.Insert([]byte("k"), []byte("v"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	cur := db.NewCursor()
	defer cur.Close()
	if _, _, err := cur.Find([]byte("k"), nil, false, nil, ExactMatch); err != nil {
		t.Fatalf("Find: %v", err)
	}

	clone := db.NewCursor()
	clone.Clone(cur)
	defer clone.Close()
	if clone.state != cursorCoupled {
		t.Fatalf("expected clone to be coupled")
	}
	key, _, err := clone.Move(nil, false, nil, First)
	if err != nil {
		t.Fatalf("Move on clone: %v", err)
	}
	if string(key) != "k" {
		t.Fatalf("got %q", key)
	}

	cur.SetToNil()
	if cur.state != cursorNil {
		t.Fatalf("expected nil state after SetToNil")
	}
	if _, _, err := cur.Move(nil, false, nil, Next); err == nil {
		t.Fatalf("expected error moving Next from a nil cursor")
	}
}
