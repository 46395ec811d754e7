// Package upscaledb is an embedded key/value database engine built
// around a disk-resident B+tree whose pages are mediated by a page
// cache.
//
// The package is organized around three coupled subsystems: the
// B+tree mutation engine (insert/erase with split/merge/rebalance),
// the Page object (dirty state, CRC, buffer lifecycle), and the
// Cursor (a coupled/uncoupled iterator that survives cache evictions
// and page splits).
//
// upscaledb is single-threaded and cooperative: a Database handle must
// not be used concurrently from multiple goroutines. It has no
// transactions, no MVCC, and no recovery log — see the package-level
// Non-goals in the project's design notes.
//
// Basic usage:
//
//	db, err := upscaledb.Create("/path/to/file.udb", upscaledb.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Insert([]byte("key"), []byte("value"), 0); err != nil {
//	    log.Fatal(err)
//	}
//
//	cur := db.NewCursor()
//	defer cur.Close()
//	if _, _, err := cur.Find([]byte("key"), nil, false, nil, upscaledb.ExactMatch); err != nil {
//	    log.Fatal(err)
//	}
package upscaledb
