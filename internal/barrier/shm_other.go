//go:build !unix

package barrier

import (
	"errors"
	"os"
)

var errUnsupportedPlatform = errors.New("hermes: frame barrier requires a unix-like OS")

func createWord(name string) ([]byte, *os.File, error) { return nil, nil, errUnsupportedPlatform }
func openWord(name string) ([]byte, *os.File, error)   { return nil, nil, errUnsupportedPlatform }
func unlinkWord(name string) error                     { return errUnsupportedPlatform }
func unmapWord(mem []byte, f *os.File) error            { return nil }
