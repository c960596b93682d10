//go:build !unix

package backplane

import (
	"errors"
	"os"
)

var errUnsupportedPlatform = errors.New("hermes: shared-memory backplane requires a unix-like OS")

func createFile(name string, size uint32) (*os.File, error) { return nil, errUnsupportedPlatform }
func openFile(name string) (*os.File, int64, error)          { return nil, 0, errUnsupportedPlatform }
func unlinkFile(name string) error                           { return errUnsupportedPlatform }
func mmap(f *os.File, size int) ([]byte, error)               { return nil, errUnsupportedPlatform }
func munmap(b []byte) error                                   { return nil }
