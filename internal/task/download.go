package task

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netq"
)

// Store is where a download lands: a scratch file first, then an atomic move
// to its destination.
type Store interface {
	CreateTemp() (*os.File, error)
	AtomicMove(src, dst string, overwriteDirectory bool) error
}

// DownloadTask fetches a URL into a file at a destination path.
type DownloadTask struct {
	base
	dest  string
	store Store
	done  func(error)
}

var _ netq.Job = (*DownloadTask)(nil)

// NewDownloadTask builds a fetch-to-file task. On success the file is at dest
// when done(nil) is called; on failure dest is untouched. done is called
// exactly once, on a background goroutine.
func NewDownloadTask(ctx context.Context, cfg Config, url, dest string, store Store, done func(error)) *DownloadTask {
	t := &DownloadTask{dest: dest, store: store, done: done}
	t.init(ctx, "download", url, cfg)
	return t
}

// Destination returns the path the file is saved to.
func (t *DownloadTask) Destination() string { return t.dest }

// Start issues the request and releases rel when done. Later calls do
// nothing.
func (t *DownloadTask) Start(rel netq.Releaser) {
	t.launch(rel, t.run)
}

func (t *DownloadTask) run(ctx context.Context) {
	started := time.Now()
	resp, err := t.fetch(ctx)
	if err == nil {
		err = t.save(resp.Body)
	}
	t.finish(err, started)
	if t.done != nil {
		t.done(err)
	}
}

// save streams body into a scratch file and moves it into place.
func (t *DownloadTask) save(body io.ReadCloser) error {
	defer func() { _ = body.Close() }()
	if t.store == nil {
		return neterr.New(neterr.MissingFile, errors.New("no store configured"))
	}
	f, err := t.store.CreateTemp()
	if err != nil {
		return neterr.New(neterr.MissingFile, err)
	}
	tmp := f.Name()
	_, cpErr := io.Copy(f, body)
	closeErr := f.Close()
	if cpErr != nil {
		t.discard(tmp)
		return neterr.Wrap(cpErr)
	}
	if closeErr != nil {
		t.discard(tmp)
		return neterr.New(neterr.MissingFile, closeErr)
	}
	if err := t.store.AtomicMove(tmp, t.dest, false); err != nil {
		t.discard(tmp)
		return neterr.New(neterr.SaveFailed, err)
	}
	return nil
}

func (t *DownloadTask) discard(tmp string) {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.Warn("remove scratch file", "path", tmp, "err", err)
	}
}
