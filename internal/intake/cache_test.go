package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/intake/internal/submission"
)

// memBlobs is an in-memory submission.BlobStore.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (b *memBlobs) Put(_ context.Context, key string, f submission.File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.data == nil {
		b.data = map[string][]byte{}
	}
	b.data[key] = f.Data
	return nil
}

func (b *memBlobs) PublicURL(_ context.Context, key string) (string, error) {
	return "/uploads/" + key, nil
}

// memRecords is an in-memory submission.RecordStore.
type memRecords struct {
	mu   sync.Mutex
	rows []*submission.Record
}

func (r *memRecords) Insert(_ context.Context, rec *submission.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, rec)
	return nil
}

// banSet bans a fixed set of emails.
type banSet map[string]bool

func (b banSet) IsBanned(_ context.Context, email, _ string) bool { return b[email] }

func testDeps(previews *submission.MemoryPreviews) submission.Deps {
	return submission.Deps{
		Gate:        banSet{"blocked@example.com": true},
		Blobs:       &memBlobs{},
		Records:     &memRecords{},
		Previews:    previews,
		CallTimeout: time.Second,
	}
}

func newTestCache(t *testing.T, opts Options) (*Cache, *submission.MemoryPreviews) {
	t.Helper()
	previews := submission.NewMemoryPreviews()
	if opts.EvictInterval == 0 {
		opts.EvictInterval = time.Hour // sweeps are driven by hand
	}
	c := New(testDeps(previews), opts)
	t.Cleanup(c.Stop)
	return c, previews
}

func jpeg(name string) submission.File {
	return submission.File{Name: name, ContentType: "image/jpeg", Data: append([]byte("\xff\xd8\xff\xe0"), name...)}
}

func TestCacheCreateGetEnd(t *testing.T) {
	c, previews := newTestCache(t, Options{})

	s := c.Create()
	got, err := c.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, s.AddFiles([]submission.File{jpeg("a")}))
	require.Equal(t, 1, previews.Len())

	require.NoError(t, c.End(s.ID()))
	assert.Zero(t, previews.Len(), "ending a session revokes its previews")
	assert.Zero(t, c.Len())

	_, err = c.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.End(s.ID()), ErrNotFound)
}

func TestCacheEvictsIdleSessions(t *testing.T) {
	c, previews := newTestCache(t, Options{IdleTTL: time.Minute})
	clock := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	stale := c.Create()
	require.NoError(t, stale.AddFiles([]submission.File{jpeg("a")}))
	clock = clock.Add(50 * time.Second)
	fresh := c.Create()

	clock = clock.Add(20 * time.Second)
	c.evictIdle()

	_, err := c.Get(stale.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(fresh.ID())
	assert.NoError(t, err)
	assert.Zero(t, previews.Len())
	assert.Equal(t, 1, c.Len())
}

func TestCacheGetRefreshesIdleClock(t *testing.T) {
	c, _ := newTestCache(t, Options{IdleTTL: time.Minute})
	clock := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	s := c.Create()
	clock = clock.Add(45 * time.Second)
	_, err := c.Get(s.ID())
	require.NoError(t, err)

	clock = clock.Add(45 * time.Second)
	c.evictIdle()

	_, err = c.Get(s.ID())
	assert.NoError(t, err)
}

func TestCacheLRUPressure(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 2})
	clock := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	first := c.Create()
	second := c.Create()
	_, _ = c.Get(first.ID()) // first is now more recent than second
	third := c.Create()

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(second.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	for _, s := range []*submission.Session{first, third} {
		_, err := c.Get(s.ID())
		assert.NoError(t, err)
	}
}

func TestCacheStopClosesEverything(t *testing.T) {
	previews := submission.NewMemoryPreviews()
	c := New(testDeps(previews), Options{EvictInterval: time.Hour})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Create().AddFiles([]submission.File{jpeg("x")}))
	}
	c.Stop()
	c.Stop()

	assert.Zero(t, c.Len())
	assert.Zero(t, previews.Len())
}
