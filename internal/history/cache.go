package history

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BucketCache is a bounded LRU of day buckets keyed by the store's day key.
// It is shared by all ingestion tasks and all HTTP handlers; cached slices
// are treated as immutable and replaced wholesale on write-through.
type BucketCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, []Trade]
}

func NewBucketCache(capacity int) (*BucketCache, error) {
	c, err := lru.New[string, []Trade](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}
	return &BucketCache{lru: c}, nil
}

func (c *BucketCache) Get(key string) ([]Trade, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *BucketCache) Add(key string, trades []Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, trades)
}

// Replace updates an entry only if it is resident, reporting whether it was.
// The write path uses this so a store write is reflected by the very next
// read of a cached "today" bucket, without forcing cold buckets in.
func (c *BucketCache) Replace(key string, trades []Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lru.Contains(key) {
		return false
	}
	c.lru.Add(key, trades)
	return true
}

func (c *BucketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
