//go:build !unix

package mmap

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("mmap: unsupported platform")

func osMap(*os.File, int) ([]byte, error) { return nil, errUnsupported }

func osUnmap([]byte) error { return nil }

func osSync([]byte) error { return errUnsupported }
