package constraint

import "sync"

// Cache memoizes Parse per source string. Concurrent callers asking for the
// same expression share one parse.
type Cache struct {
	entries sync.Map // string -> *cacheEntry
}

type cacheEntry struct {
	once sync.Once
	expr Expression
	err  error
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Parse returns the compiled expression for src, parsing it at most once.
func (c *Cache) Parse(src string) (Expression, error) {
	v, _ := c.entries.LoadOrStore(src, &cacheEntry{})
	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		entry.expr, entry.err = Parse(src)
	})
	return entry.expr, entry.err
}

// Len reports how many distinct expressions the cache holds.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
