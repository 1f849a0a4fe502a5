package submission

import (
	"context"
	"errors"
	"sync"
)

// fakeRegistry records every filter it receives.
type fakeRegistry struct {
	mu      sync.Mutex
	filters []BanFilter
	match   func(BanFilter) bool
	err     error
	block   chan struct{} // when set, Query waits on it
}

func (r *fakeRegistry) Query(ctx context.Context, f BanFilter) ([]BanRecord, error) {
	r.mu.Lock()
	r.filters = append(r.filters, f)
	r.mu.Unlock()
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.match != nil && r.match(f) {
		return []BanRecord{{ID: 1, Email: f.Email, Phone: f.Phone, IsActive: true}}, nil
	}
	return nil, nil
}

func (r *fakeRegistry) calls() []BanFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BanFilter(nil), r.filters...)
}

// fakeBlobs stores blobs in a map and fails on the configured put number.
type fakeBlobs struct {
	mu       sync.Mutex
	keys     []string
	data     map[string][]byte
	failPut  int // 1-based; 0 never fails
	puts     int
	deadline bool // true when every call carried a deadline
	started  chan struct{}
	release  chan struct{}
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: map[string][]byte{}, deadline: true}
}

func (b *fakeBlobs) Put(ctx context.Context, key string, f File) error {
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if _, ok := ctx.Deadline(); !ok {
		b.deadline = false
	}
	if b.failPut == b.puts {
		return errors.New("disk full")
	}
	b.keys = append(b.keys, key)
	b.data[key] = f.Data
	return nil
}

func (b *fakeBlobs) PublicURL(ctx context.Context, key string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		b.mu.Lock()
		b.deadline = false
		b.mu.Unlock()
	}
	return "https://cdn.example.com/" + key, nil
}

// fakeRecords captures inserted records.
type fakeRecords struct {
	mu      sync.Mutex
	records []*Record
	err     error
}

func (r *fakeRecords) Insert(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	rec.ID = int64(len(r.records) + 1)
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecords) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
