package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrEmptyFile = errors.New("evidence file is empty")

// maxSize caps a single evidence upload at 5 MiB.
const maxSize = 5 << 20

// Store persists dispute evidence and returns a URL it can later be
// served from.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DiskStore writes evidence files under a local directory and serves
// them at /uploads/<file>.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	fname := uuid.NewString() + sanitizeExt(name)
	path := filepath.Join(s.dir, fname)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxSize))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write evidence file: %w", err)
	}
	if n == 0 {
		os.Remove(path)
		return "", ErrEmptyFile
	}
	return "/uploads/" + fname, nil
}

// Dir is the directory uploads are written to, for static serving.
func (s *DiskStore) Dir() string { return s.dir }

// sanitizeExt keeps only a plausible file extension from the uploaded
// name; anything else is dropped.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
