package cache

import (
	"errors"
	"io/fs"
	"os"
)

// fsOps is the filesystem surface the cache mutates through. Tests swap it
// to inject failures between the steps of a move.
type fsOps interface {
	Rename(oldpath, newpath string) error
	RemoveAll(path string) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
}

type osFS struct{}

func (osFS) Rename(o, n string) error                  { return os.Rename(o, n) }
func (osFS) RemoveAll(p string) error                  { return os.RemoveAll(p) }
func (osFS) MkdirAll(p string, perm os.FileMode) error { return os.MkdirAll(p, perm) }
func (osFS) Stat(p string) (os.FileInfo, error)        { return os.Stat(p) }

// Existence describes what, if anything, is at a path.
type Existence int

const (
	NotExist Existence = iota
	File
	Directory
)

func (e Existence) String() string {
	switch e {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "not_exist"
	}
}

// Exists reports whether path is absent, a regular file or a directory.
// Decisions based on it can race with other writers; use it only where no
// filesystem operation reports the same information.
func (c *Cache) Exists(path string) Existence {
	fi, err := c.fs.Stat(path)
	if err != nil {
		return NotExist
	}
	if fi.IsDir() {
		return Directory
	}
	return File
}

// CreateDir creates dir and any missing parents. An existing directory is not
// an error.
func (c *Cache) CreateDir(dir string) error {
	if c.Exists(dir) == Directory {
		return nil
	}
	return c.fs.MkdirAll(dir, 0o755)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
