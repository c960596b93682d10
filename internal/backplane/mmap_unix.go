//go:build unix

package backplane

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmDir is where named shared-memory segments live. tmpfs-backed on
// Linux; the same path convention is reused verbatim by
// internal/barrier for the frame barrier's semaphore words.
const shmDir = "/dev/shm"

func shmPath(name string) string {
	return filepath.Join(shmDir, "hermes."+name)
}

// createFile creates a new named shared-memory-backed file of exactly
// size bytes, failing if one already exists.
func createFile(name string, size uint32) (*os.File, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("truncate %s: %w", path, err)
	}
	return f, nil
}

func openFile(name string) (*os.File, int64, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}

func unlinkFile(name string) error {
	err := os.Remove(shmPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func mmap(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func munmap(b []byte) error {
	if b == nil {
		return nil
	}
	return unix.Munmap(b)
}
