package submission

import (
	"sync"

	"github.com/google/uuid"
)

// File is one user-selected photo held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size reports the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// PreviewHandle is an opaque, revocable reference the display layer uses to
// show a staged file.  It stays valid until released.
type PreviewHandle string

// PreviewRegistry issues and revokes preview handles.  Attachments is the
// only caller of Release.
type PreviewRegistry interface {
	Acquire(f File) PreviewHandle
	Release(h PreviewHandle)
}

// MemoryPreviews is an in-process PreviewRegistry shared between all
// sessions and the HTTP preview endpoint.  Safe for concurrent use.
type MemoryPreviews struct {
	mu      sync.RWMutex
	handles map[PreviewHandle]File
}

// NewMemoryPreviews returns an empty registry.
func NewMemoryPreviews() *MemoryPreviews {
	return &MemoryPreviews{handles: make(map[PreviewHandle]File)}
}

// Acquire stores f under a fresh handle.
func (p *MemoryPreviews) Acquire(f File) PreviewHandle {
	h := PreviewHandle("preview-" + uuid.NewString())
	p.mu.Lock()
	p.handles[h] = f
	p.mu.Unlock()
	return h
}

// Release revokes h.  Releasing an unknown handle is a no-op.
func (p *MemoryPreviews) Release(h PreviewHandle) {
	p.mu.Lock()
	delete(p.handles, h)
	p.mu.Unlock()
}

// Lookup returns the file behind a live handle.
func (p *MemoryPreviews) Lookup(h PreviewHandle) (File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.handles[h]
	return f, ok
}

// Len reports the number of live handles.
func (p *MemoryPreviews) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}
