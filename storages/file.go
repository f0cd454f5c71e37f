package storages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// maxFileNameLen keeps names under the common 255-byte limit with room for
// temporary suffixes.
const maxFileNameLen = 240

// FileStore keeps one flat file per key in a single directory.
type FileStore struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

var _ Store = new(FileStore)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// FileName maps a key to its file name. Keys too long for the filesystem
// are replaced by "_H_" and their SHA-256.
func FileName(key string) string {
	if len(key) <= maxFileNameLen {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "_H_" + hex.EncodeToString(sum[:])
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, FileName(key))
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	content, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

// Put writes through a temporary file and a rename, so readers never see a
// partial document. The directory lock serializes writers across processes
// sharing the cache dir.
func (f *FileStore) Put(ctx context.Context, key string, value []byte) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache dir: not acquired")
	}
	defer func() {
		err = errors.Join(err, f.lock.Unlock())
	}()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}
