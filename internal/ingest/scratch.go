package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const scratchDirName = "guruji-ingest"

// Scratch hands out per-invocation directories under a root.
type Scratch struct {
	root string
}

// NewScratch roots scratch space at dir, or the platform temp dir when empty.
func NewScratch(dir string) *Scratch {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), scratchDirName)
	}
	return &Scratch{root: dir}
}

// ScratchFile is a local copy of one object. Release removes it.
type ScratchFile struct {
	Path string
	dir  string

	once sync.Once
	err  error
}

// Acquire reserves <root>/<invocationID>/<base name of object>.
func (s *Scratch) Acquire(invocationID, objectName string) (*ScratchFile, error) {
	if invocationID == "" {
		return nil, errors.New("invocation id is required")
	}
	dir := filepath.Join(s.root, invocationID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &ScratchFile{Path: filepath.Join(dir, baseName(objectName)), dir: dir}, nil
}

// Release deletes the scratch file and its invocation directory. It is safe
// to call more than once and after something else removed the file.
func (f *ScratchFile) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		f.err = removeIfExists(f.Path)
		if err := removeIfExists(f.dir); err != nil && f.err == nil {
			f.err = err
		}
	})
	return f.err
}

func removeIfExists(p string) error {
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("remove scratch %s: %w", p, err)
	}
	return nil
}

// checkDownloaded fails when the copy is missing or empty.
func checkDownloaded(p string) (int64, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errors.New("downloaded file is missing")
		}
		return 0, fmt.Errorf("stat downloaded file: %w", err)
	}
	if info.Size() == 0 {
		return 0, errors.New("downloaded file is empty")
	}
	return info.Size(), nil
}
