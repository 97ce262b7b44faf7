package search

import "sync"

type cacheKey struct {
	query string
	site  string
}

// lastQueryCache holds the unpaginated results of the most recent query.
type lastQueryCache struct {
	mu      sync.Mutex
	key     cacheKey
	results []Result
	valid   bool
}

func (c *lastQueryCache) get(key cacheKey) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.key != key {
		return nil, false
	}
	return c.results, true
}

func (c *lastQueryCache) put(key cacheKey, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.results = results
	c.valid = true
}

func (c *lastQueryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = cacheKey{}
	c.results = nil
	c.valid = false
}
