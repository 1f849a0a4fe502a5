// internal/intake/cache.go
//
// Live intake sessions keyed by id.
//
// Context
// -------
// Every browser tab that opens the form gets a submission.Session held in
// memory until the tab ends it, it sits idle past IdleTTL, or LRU pressure
// pushes it out.  Sessions share one set of pipeline collaborators (ban
// gate, blob store, record store, and preview registry).
//
// Notes
// -----
//   - A session mid-Submit is never evicted; the next sweep retries it.
//   - Evicted sessions are Closed so their preview handles are revoked.
//   - Oxford commas, two spaces after periods.
package intake

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/intake/internal/metrics"
	"github.com/yanizio/intake/internal/submission"
)

// Static defaults used when Options leaves a field zero.
const (
	IdleTTL       = 30 * time.Minute
	MaxEntries    = 1000
	EvictInterval = time.Minute
)

// ErrNotFound is returned for unknown or evicted session ids.
var ErrNotFound = errors.New("intake session not found")

// Options tunes the cache.
type Options struct {
	IdleTTL       time.Duration
	MaxEntries    int
	EvictInterval time.Duration
}

type entry struct {
	sess     *submission.Session
	lastSeen int64 // UnixNano
}

func (e *entry) touch(now time.Time) { atomic.StoreInt64(&e.lastSeen, now.UnixNano()) }

// Cache stores sessions in a sync.Map and evicts them on idle TTL or LRU
// pressure.
type Cache struct {
	deps       submission.Deps
	m          sync.Map
	size       atomic.Int64
	idleTTL    time.Duration
	maxEntries int

	evictTicker *time.Ticker
	done        chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// New constructs a Cache and starts the background evictor.  Call Stop on
// shutdown.
func New(deps submission.Deps, opts Options) *Cache {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = IdleTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = MaxEntries
	}
	if opts.EvictInterval <= 0 {
		opts.EvictInterval = EvictInterval
	}
	c := &Cache{
		deps:        deps,
		idleTTL:     opts.IdleTTL,
		maxEntries:  opts.MaxEntries,
		evictTicker: time.NewTicker(opts.EvictInterval),
		done:        make(chan struct{}),
		now:         time.Now,
	}
	go c.evictLoop()
	return c
}

// Create starts a new session and returns it.
func (c *Cache) Create() *submission.Session {
	id := uuid.NewString()
	sess := submission.NewSession(id, c.deps)
	c.m.Store(id, &entry{sess: sess, lastSeen: c.now().UnixNano()})
	metrics.ActiveSessions.Inc()
	if c.size.Add(1) > int64(c.maxEntries) {
		c.evictLRU()
	}
	return sess
}

// Get returns the session for id and marks it as recently used.
func (c *Cache) Get(id string) (*submission.Session, error) {
	v, ok := c.m.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	ent := v.(*entry)
	ent.touch(c.now())
	return ent.sess, nil
}

// End closes and forgets the session.  Unknown ids report ErrNotFound.
func (c *Cache) End(id string) error {
	v, ok := c.m.LoadAndDelete(id)
	if !ok {
		return ErrNotFound
	}
	v.(*entry).sess.Close()
	c.size.Add(-1)
	metrics.ActiveSessions.Dec()
	return nil
}

// Len reports the number of live sessions.
func (c *Cache) Len() int { return int(c.size.Load()) }

// Previews returns the shared preview registry.
func (c *Cache) Previews() submission.PreviewRegistry { return c.deps.Previews }

// Stop halts the evictor and closes every session.  Safe to call twice.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		c.evictTicker.Stop()
		close(c.done)
		c.m.Range(func(key, _ any) bool {
			_ = c.End(key.(string))
			return true
		})
	})
}
