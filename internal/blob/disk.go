// internal/blob/disk.go
//
// Local-disk photo storage with public URLs served by the intake binary.
//
// Context
//   Each key is a flat file name under Dir.  Put writes to a temp file in
//   the same directory and renames it into place, so a reader never sees a
//   half-written photo.  PublicURL is BaseURL + "/" + escaped key; the web
//   entry point mounts Dir under that prefix.
//
// Notes
//   • Keys with path separators or ".." are refused, as are keys whose
//     extension is not a photo type the file server would label as an image.
//   • Existing keys are overwritten.  Keys are random, so collisions mean a
//     caller bug rather than a race between submitters.
//
//------------------------------------------------------------------------------

package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanizio/intake/internal/submission"
)

// ErrBadKey is returned for keys that would escape Dir or that do not end
// in a photo extension.
var ErrBadKey = errors.New("blob: invalid key")

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// DiskStore implements submission.BlobStore on a local directory.
type DiskStore struct {
	dir     string
	baseURL string
}

var _ submission.BlobStore = (*DiskStore)(nil)

// NewDiskStore creates dir when missing.  baseURL has any trailing slash
// removed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("blob: empty storage dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: mkdir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string { return s.dir }

// Put writes f.Data under key.
func (s *DiskStore) Put(ctx context.Context, key string, f submission.File) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("blob: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("blob: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blob: close %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("blob: chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("blob: rename %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the URL a browser can fetch key from.  The key must
// exist.
func (s *DiskStore) PublicURL(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("blob: stat %s: %w", key, err)
	}
	return s.baseURL + "/" + url.PathEscape(key), nil
}

func checkKey(key string) error {
	if key == "" || key == "." || strings.Contains(key, "..") ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") ||
		!photoExts[strings.ToLower(filepath.Ext(key))] {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return nil
}
