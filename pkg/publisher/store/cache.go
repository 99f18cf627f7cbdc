package store

import "sync"

// recordCache is the in-memory view of the persisted run records.
type recordCache struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func newRecordCache() *recordCache {
	return &recordCache{records: make(map[string][]byte)}
}

func copyBytes(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func (c *recordCache) get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return copyBytes(val), true
}

func (c *recordCache) set(id string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = copyBytes(value)
}

func (c *recordCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

func (c *recordCache) list() map[string][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]byte, len(c.records))
	for k, v := range c.records {
		out[k] = copyBytes(v)
	}
	return out
}

// replace swaps the whole cache for the given contents.
func (c *recordCache) replace(records map[string][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string][]byte, len(records))
	for k, v := range records {
		c.records[k] = copyBytes(v)
	}
}
