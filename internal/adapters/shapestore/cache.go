package shapestore

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/jobrunner/meridian/internal/domain"
)

// featureCache keeps recently decoded features. lru.Cache is not safe for
// concurrent use, so every access takes the mutex.
type featureCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// newFeatureCache returns a cache holding up to entries features, or a
// disabled cache when entries is not positive.
func newFeatureCache(entries int) *featureCache {
	if entries <= 0 {
		return &featureCache{}
	}
	return &featureCache{cache: lru.New(entries)}
}

func cacheKey(layerID string, fid int64) string {
	return fmt.Sprintf("%s/%d", layerID, fid)
}

func (c *featureCache) get(layerID string, fid int64) (domain.Feature, bool) {
	if c.cache == nil {
		return domain.Feature{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(cacheKey(layerID, fid))
	if !ok {
		return domain.Feature{}, false
	}
	return v.(domain.Feature), true
}

// add stores f. Its range extent must already be computed.
func (c *featureCache) add(layerID string, f domain.Feature) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(cacheKey(layerID, f.ID), f)
}

func (c *featureCache) len() int {
	if c.cache == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *featureCache) clear() {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}
