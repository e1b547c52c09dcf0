package maintenance

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Store is the filesystem seen by the executor. The embedded Locker is held
// for the whole check-copy-delete sequence.
type Store interface {
	sync.Locker
	// Exists reports whether path exists; err is set only when that cannot
	// be determined.
	Exists(path string) (bool, error)
	Writable(path string) bool
	Open(path string) (io.ReadCloser, int64, error)
	Remove(path string) error
}

// FileStore is the Store backed by the local filesystem
type FileStore struct {
	sync.Mutex
}

// NewFileStore creates a FileStore
func NewFileStore() *FileStore {
	return &FileStore{}
}

func (s *FileStore) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Writable asks the kernel whether the process may write path
func (s *FileStore) Writable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func (s *FileStore) Open(path string) (io.ReadCloser, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

func (s *FileStore) Remove(path string) error {
	return os.Remove(path)
}
