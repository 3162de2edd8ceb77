package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStoreSave(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	url, err := store.Save(context.Background(), "receipt.png", strings.NewReader("fake-png-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") {
		t.Errorf("url = %q, want /uploads/ prefix", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want .png suffix", url)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), strings.TrimPrefix(url, "/uploads/")))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "fake-png-bytes" {
		t.Errorf("saved contents = %q", data)
	}
}

func TestDiskStoreRejectsEmpty(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	_, err = store.Save(context.Background(), "empty.txt", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err = %v, want ErrEmptyFile", err)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("empty upload left %d files behind", len(entries))
	}
}

func TestSanitizeExt(t *testing.T) {
	cases := map[string]string{
		"receipt.png":        ".png",
		"../../etc/passwd":   "",
		"noext":              "",
		"weird.p n g":        "",
		"archive.tar.gz":     ".gz",
		"shot.JPEG":          ".jpeg",
		"trail.verylongext1": "",
	}
	for in, want := range cases {
		if got := sanitizeExt(in); got != want {
			t.Errorf("sanitizeExt(%q) = %q, want %q", in, got, want)
		}
	}
}
