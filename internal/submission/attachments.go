// internal/submission/attachments.go
//
// Intake – submission pipeline: staged photo attachments.
//
// Context
//   Attachments keeps the ordered list of photos selected in one session.
//   Each staged file owns exactly one preview handle, acquired on Add and
//   released on Remove, Clear, or session end.  Nothing else releases them.
//
// Rules
//   Add is all-or-nothing per batch.  Checks run in this order and the
//   first failure rejects the whole batch, leaving staged files untouched:
//
//      1.  capacity  – staged + batch must not exceed MaxPhotos.
//      2.  type      – every file must be JPEG, PNG, or WEBP, and the
//                      bytes must agree with the declared type.
//      3.  size      – every file must be ≤ MaxPhotoBytes.
//
//   Attachments is not safe for concurrent use; Session serialises access.
//
//------------------------------------------------------------------------------

package submission

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxPhotos     = 6
	MaxPhotoBytes = 5 * 1024 * 1024
)

// acceptedTypes lists the photo media types and the file extensions each
// may be stored under.  The first extension is the canonical one.
var acceptedTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
}

// Attachment pairs a staged file with its live preview handle.
type Attachment struct {
	File    File
	Preview PreviewHandle
}

// Attachments is the ordered staging area for one session.
type Attachments struct {
	previews PreviewRegistry
	items    []Attachment
}

// NewAttachments returns an empty staging area backed by previews.
func NewAttachments(previews PreviewRegistry) *Attachments {
	return &Attachments{previews: previews}
}

// Len reports the number of staged files.
func (a *Attachments) Len() int { return len(a.items) }

// Items returns a copy of the staged attachments in selection order.
func (a *Attachments) Items() []Attachment {
	out := make([]Attachment, len(a.items))
	copy(out, a.items)
	return out
}

// Add stages files.  On rejection the error wraps ErrCapacity, ErrFileType,
// or ErrFileSize and nothing is staged.  Files with an empty ContentType
// are sniffed; the detected type is stored back on the staged copy.  A
// declared type the bytes do not match is rejected as ErrFileType.
func (a *Attachments) Add(files []File) error {
	if total := len(a.items) + len(files); total > MaxPhotos {
		return fmt.Errorf("%w: %d staged + %d selected > %d", ErrCapacity, len(a.items), len(files), MaxPhotos)
	}

	typed := make([]File, len(files))
	for i, f := range files {
		ct := contentType(f)
		if _, ok := acceptedTypes[ct]; !ok {
			return fmt.Errorf("%w: %q is %q", ErrFileType, f.Name, ct)
		}
		if got := mimetype.Detect(f.Data); !got.Is(ct) {
			return fmt.Errorf("%w: %q declared %q, content is %q", ErrFileType, f.Name, ct, got.String())
		}
		f.ContentType = ct
		typed[i] = f
	}

	for _, f := range typed {
		if f.Size() > MaxPhotoBytes {
			return fmt.Errorf("%w: %q is %d bytes", ErrFileSize, f.Name, f.Size())
		}
	}

	for _, f := range typed {
		a.items = append(a.items, Attachment{File: f, Preview: a.previews.Acquire(f)})
	}
	return nil
}

// Remove unstages the file at index i and revokes its preview.  Later
// attachments shift down by one.
func (a *Attachments) Remove(i int) error {
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndex, i, len(a.items))
	}
	a.previews.Release(a.items[i].Preview)
	a.items = append(a.items[:i], a.items[i+1:]...)
	return nil
}

// Clear revokes every preview and empties the staging area.
func (a *Attachments) Clear() {
	for _, it := range a.items {
		a.previews.Release(it.Preview)
	}
	a.items = nil
}

// contentType returns the declared media type without parameters, or the
// sniffed type when none was declared.
func contentType(f File) string {
	if f.ContentType == "" {
		return mimetype.Detect(f.Data).String()
	}
	mt, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(f.ContentType))
	}
	return mt
}

// extensionFor returns the stored file extension for an accepted media type.
// The name's own extension is kept only when it belongs to that type.
func extensionFor(name, ct string) string {
	exts := acceptedTypes[ct]
	if len(exts) == 0 {
		return ""
	}
	own := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if e == own {
			return own
		}
	}
	return exts[0]
}
