// evictor.go houses the eviction loop for Cache.  Every EvictInterval it
// scans the map and removes:
//
//   - sessions idle longer than idleTTL
//   - least-recently-used sessions when the map exceeds maxEntries
//
// Each eviction is logged and counted in intake_session_evictions_total.
package intake

import (
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/metrics"
	"github.com/yanizio/intake/internal/submission"
)

func (c *Cache) evictLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.evictTicker.C:
			c.evictIdle()
			c.evictLRU()
		}
	}
}

// evictIdle drops sessions idle longer than idleTTL.
func (c *Cache) evictIdle() {
	now := c.now().UnixNano()
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		idle := time.Duration(now - atomic.LoadInt64(&ent.lastSeen))
		if idle > c.idleTTL && c.evict(key.(string), ent) {
			zap.S().Infow("intake session evicted", "session", key, "idle", idle.Truncate(time.Second))
		}
		return true
	})
}

// evictLRU trims the oldest sessions until the map fits maxEntries.
func (c *Cache) evictLRU() {
	over := c.Len() - c.maxEntries
	if over <= 0 {
		return
	}

	type kv struct {
		key string
		ent *entry
		at  int64
	}
	var all []kv
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		all = append(all, kv{key: key.(string), ent: ent, at: atomic.LoadInt64(&ent.lastSeen)})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })

	for _, e := range all {
		if over == 0 {
			break
		}
		if c.evict(e.key, e.ent) {
			zap.S().Infow("intake session evicted (LRU pressure)", "session", e.key)
			over--
		}
	}
}

// evict removes ent unless it is mid-Submit or already gone.
func (c *Cache) evict(key string, ent *entry) bool {
	if ent.sess.State() != submission.StateIdle {
		return false
	}
	if !c.m.CompareAndDelete(key, ent) {
		return false
	}
	ent.sess.Close()
	c.size.Add(-1)
	metrics.ActiveSessions.Dec()
	metrics.SessionEvictions.Inc()
	return true
}
