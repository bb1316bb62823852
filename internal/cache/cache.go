// Package cache stores downloaded profile assets on disk under paths derived
// from the owner's numeric id. All writes go through AtomicMove, so a cached
// file is either the previous complete version or the new complete version.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/ghusers/internal/metrics"
)

// ErrIsDirectory is returned by AtomicMove when the destination is a
// directory and overwriting directories was not requested.
var ErrIsDirectory = errors.New("cache: destination is a directory")

const (
	usersDir   = "users"
	avatarDir  = "avatar"
	avatarFile = "avatar.image"
	scratchDir = ".tmp"
)

// Cache is a directory-backed store for avatar images.
type Cache struct {
	root string
	fs   fsOps
	log  *slog.Logger
}

// New returns a Cache rooted at root. Nothing is created until the first
// write.
func New(root string, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{root: filepath.Clean(root), fs: osFS{}, log: log}
}

// DefaultRoot is the platform cache directory joined with app.
func DefaultRoot(app string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, app), nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// PathFor returns <root>/users/<id>/avatar/avatar.image. It performs no I/O.
func (c *Cache) PathFor(id int64) string {
	return filepath.Join(c.root, usersDir, strconv.FormatInt(id, 10), avatarDir, avatarFile)
}

// Load returns the cached bytes for id when the file exists and decodes as
// an image. A missing or undecodable file yields (nil, false).
func (c *Cache) Load(id int64) ([]byte, bool) {
	b, err := os.ReadFile(c.PathFor(id))
	if err != nil {
		if !isNotExist(err) {
			c.log.Warn("read cached avatar", "id", id, "err", err)
		}
		return nil, false
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(b)); err != nil {
		c.log.Warn("cached avatar is not an image", "id", id, "err", err)
		return nil, false
	}
	return b, true
}

// LoadImage decodes the cached image for id.
func (c *Cache) LoadImage(id int64) (image.Image, bool) {
	b, ok := c.Load(id)
	if !ok {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, false
	}
	return img, true
}

// ScratchDir holds in-progress downloads. It lives under the root so renames
// out of it into the cache never cross filesystems.
func (c *Cache) ScratchDir() string {
	return filepath.Join(c.root, scratchDir)
}

// TempPath returns an unused path in the scratch directory. The file is not
// created.
func (c *Cache) TempPath() string {
	for {
		p := filepath.Join(c.ScratchDir(), uuid.NewString())
		if c.Exists(p) == NotExist {
			return p
		}
	}
}

// quarantinePath returns an unused hidden path beside target. Renames into
// it stay on target's filesystem and out of reach of SweepScratch.
func (c *Cache) quarantinePath(target string) string {
	dir := filepath.Dir(target)
	for {
		p := filepath.Join(dir, ".quarantine-"+uuid.NewString())
		if c.Exists(p) == NotExist {
			return p
		}
	}
}

// CreateTemp creates an empty file in the scratch directory for a download
// to stream into.
func (c *Cache) CreateTemp() (*os.File, error) {
	if err := c.CreateDir(c.ScratchDir()); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return os.CreateTemp(c.ScratchDir(), "download-*")
}

// AtomicMove moves src to dst, replacing any file already at dst. src must
// be on the same filesystem as dst.
//
// An existing dst is first moved into quarantine beside it. If the final
// move fails the quarantined file is put back, so dst is never left missing
// or partly written. A directory at dst is only replaced when overwriteDirectory is
// set; otherwise ErrIsDirectory is returned before anything is touched.
func (c *Cache) AtomicMove(src, dst string, overwriteDirectory bool) error {
	if c.Exists(dst) == Directory && !overwriteDirectory {
		metrics.CacheMoves.WithLabelValues("rejected").Inc()
		return fmt.Errorf("move %s: %w", dst, ErrIsDirectory)
	}

	if err := c.CreateDir(filepath.Dir(dst)); err != nil {
		metrics.CacheMoves.WithLabelValues("failed").Inc()
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}
	trash := c.quarantinePath(dst)
	quarantined := true
	if err := c.fs.Rename(dst, trash); err != nil {
		quarantined = false
		if !isNotExist(err) && c.Exists(dst) != NotExist {
			metrics.CacheMoves.WithLabelValues("failed").Inc()
			return fmt.Errorf("quarantine %s: %w", dst, err)
		}
	}

	if err := c.fs.Rename(src, dst); err != nil {
		if quarantined {
			// Nothing better to do if the restore fails too.
			if rerr := c.fs.Rename(trash, dst); rerr != nil {
				c.log.Error("restore quarantined file", "path", dst, "quarantine", trash, "err", rerr)
			}
		}
		metrics.CacheMoves.WithLabelValues("failed").Inc()
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	if quarantined {
		if err := c.fs.RemoveAll(trash); err != nil {
			c.log.Warn("remove quarantined file", "path", trash, "err", err)
		}
	}
	metrics.CacheMoves.WithLabelValues("ok").Inc()
	return nil
}

// Remove deletes path by first moving it into quarantine. A path that does
// not exist is not an error, nor is a quarantined file that could not be
// deleted afterwards.
func (c *Cache) Remove(path string) error {
	trash := c.quarantinePath(path)
	if err := c.fs.Rename(path, trash); err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("quarantine %s: %w", path, err)
	}
	if err := c.fs.RemoveAll(trash); err != nil {
		c.log.Warn("remove quarantined file", "path", trash, "err", err)
	}
	return nil
}

// RemoveAvatar deletes the cached avatar for id.
func (c *Cache) RemoveAvatar(id int64) error {
	return c.Remove(c.PathFor(id))
}

// SweepScratch removes entries in the scratch directory last modified more
// than olderThan ago and returns how many were removed. Downloads in progress
// keep touching their file, so only leftovers of interrupted runs qualify.
func (c *Cache) SweepScratch(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(c.ScratchDir())
	if err != nil {
		if isNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Removed by its owner since ReadDir.
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(c.ScratchDir(), e.Name())
		if err := c.fs.RemoveAll(p); err != nil {
			c.log.Warn("sweep scratch entry", "path", p, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
