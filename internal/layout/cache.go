package layout

import "tabi/internal/types"

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	byType map[types.TypeID]cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[types.TypeID]cacheEntry, 256)}
}

func (c *cache) get(id types.TypeID) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	l, ok := c.byType[id]
	return l, ok
}

func (c *cache) put(id types.TypeID, l *cacheEntry) {
	if c == nil {
		return
	}
	if l == nil {
		delete(c.byType, id)
		return
	}
	c.byType[id] = *l
}
