package upscaledb

// pageCache owns the lifetime of Page buffers on behalf of a Database.
// Callers borrow pages; the cache is required to uncouple every
// cursor on a page before evicting it, since a coupled cursor does not
// extend a page's lifetime.
type pageCache struct {
	db       *Database
	capacity int
	pages    map[uint64]*cacheEntry
	lruHead  *cacheEntry // most recently used
	lruTail  *cacheEntry // least recently used
	stats    *Stats
}

type cacheEntry struct {
	page       *Page
	prev, next *cacheEntry
}

func newPageCache(db *Database, capacity int, stats *Stats) *pageCache {
	if capacity < 2 {
		capacity = 2
	}
	return &pageCache{db: db, capacity: capacity, pages: make(map[uint64]*cacheEntry), stats: stats}
}

func (c *pageCache) touch(e *cacheEntry) {
	if c.lruHead == e {
		return
	}
	c.unlink(e)
	e.next = c.lruHead
	if c.lruHead != nil {
		c.lruHead.prev = e
	}
	c.lruHead = e
	if c.lruTail == nil {
		c.lruTail = e
	}
}

func (c *pageCache) unlink(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.lruHead == e {
		c.lruHead = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.lruTail == e {
		c.lruTail = e.prev
	}
	e.prev, e.next = nil, nil
}

// get returns the page at address, fetching it from the device on a
// cache miss and evicting the least-recently-used page (flushing it
// first if dirty) if the cache is full.
func (c *pageCache) get(address uint64) (*Page, error) {
	if e, ok := c.pages[address]; ok {
		c.touch(e)
		c.stats.CacheHits++
		return e.page, nil
	}
	c.stats.CacheMisses++

	if len(c.pages) >= c.capacity {
		if err := c.evictOne(); err != nil {
			return nil, err
		}
	}

	p := newPage(c.db, c.db.pageSize, false)
	if err := p.fetch(c.db.device, address); err != nil {
		return nil, err
	}
	e := &cacheEntry{page: p}
	c.pages[address] = e
	c.touch(e)
	return p, nil
}

// insertNew registers a freshly allocated page (already fetched into
// existence via Page.alloc) with the cache.
func (c *pageCache) insertNew(p *Page) error {
	if len(c.pages) >= c.capacity {
		if err := c.evictOne(); err != nil {
			return err
		}
	}
	e := &cacheEntry{page: p}
	c.pages[p.address] = e
	c.touch(e)
	return nil
}

// evictOne flushes and drops the least-recently-used page. A coupled
// cursor does not extend a page's lifetime: it is uncoupled first,
// exactly as every other slot-renumbering mutation uncouples cursors
// before touching the page it's coupled to.
func (c *pageCache) evictOne() error {
	e := c.lruTail
	if e == nil {
		return newErr(ErrOutOfMemory, "cache: no page to evict")
	}
	if err := uncoupleAllCursors(e.page, 0); err != nil {
		return err
	}
	if err := e.page.flush(c.db.device); err != nil {
		return err
	}
	c.unlink(e)
	delete(c.pages, e.page.address)
	e.page.freeBuffer()
	return nil
}

// forget removes a page from the cache without flushing it, used when
// a page has been freed by a structural operation (merge, root
// collapse) and its bytes are no longer meaningful.
func (c *pageCache) forget(address uint64) {
	if e, ok := c.pages[address]; ok {
		c.unlink(e)
		delete(c.pages, address)
	}
}

// flushAll flushes every dirty page currently cached.
func (c *pageCache) flushAll() error {
	for _, e := range c.pages {
		if err := e.page.flush(c.db.device); err != nil {
			return err
		}
	}
	return nil
}
