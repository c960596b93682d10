//go:build unix

package barrier

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Semaphore words live under the same /dev/shm directory as backplane
// segments, with a distinct filename prefix separating "hermes.*"
// segments from "hermes.sem.*" semaphores.
const semDir = "/dev/shm"

func semPath(name string) string {
	return filepath.Join(semDir, "hermes.sem."+name)
}

const wordSize = 4

func createWord(name string) ([]byte, *os.File, error) {
	path := semPath(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(wordSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, nil, err
	}
	return mem, f, nil
}

func openWord(name string) ([]byte, *os.File, error) {
	path := semPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return mem, f, nil
}

func unlinkWord(name string) error {
	err := os.Remove(semPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func unmapWord(mem []byte, f *os.File) error {
	var err error
	if mem != nil {
		err = unix.Munmap(mem)
	}
	if f != nil {
		f.Close()
	}
	return err
}
