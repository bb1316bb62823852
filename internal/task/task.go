// Package task turns an HTTP request or a file download into a queueable,
// cancellable job for the serial network queue.
package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/ghusers/internal/metrics"
	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netq"
	"github.com/tinoosan/ghusers/internal/netstate"
)

// Connectivity receives the connectivity signal derived from task outcomes.
type Connectivity interface {
	Set(netstate.State) bool
}

// Config is shared by every task built for one queue.
type Config struct {
	Client          *http.Client
	ResourceTimeout time.Duration
	Tracker         Connectivity
	Header          http.Header
	Log             *slog.Logger
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d %s", e.Code, http.StatusText(e.Code))
}

// base holds what both task kinds share: identity, cancellation, the request
// and the completion bookkeeping.
type base struct {
	id     string
	kind   string
	url    string
	cfg    Config
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	// rel is the queue ticket passed to Start, nil outside a queue.
	rel netq.Releaser
}

func (b *base) init(ctx context.Context, kind, url string, cfg Config) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Client == nil {
		cfg.Client = NewClient(DefaultConnectivityPoll)
	}
	if cfg.ResourceTimeout <= 0 {
		cfg.ResourceTimeout = DefaultResourceTimeout
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	b.id = uuid.NewString()
	b.kind = kind
	b.url = url
	b.cfg = cfg
	b.log = cfg.Log.With("task_id", b.id, "task", kind)
	b.ctx, b.cancel = context.WithCancel(ctx)
}

// ID identifies the task so callers can tell a superseded task's completion
// from the current one.
func (b *base) ID() string { return b.id }

// URL returns the remote resource the task fetches.
func (b *base) URL() string { return b.url }

// Cancel aborts the request. The completion still fires, with a Cancelled
// error, and the queue is still released. Cancelling before Start makes the
// task fail as soon as it is started.
func (b *base) Cancel() { b.cancel() }

// launch runs fn on its own goroutine the first time it is called. rel is
// released when the task finishes.
func (b *base) launch(rel netq.Releaser, fn func(ctx context.Context)) {
	b.once.Do(func() {
		b.rel = rel
		go func() {
			ctx, cancel := context.WithTimeout(b.ctx, b.cfg.ResourceTimeout)
			defer cancel()
			defer b.cancel()
			fn(ctx)
		}()
	})
}

func (b *base) fetch(ctx context.Context) (*http.Response, error) {
	ctx = withWaitingHook(ctx, func() {
		b.log.Warn("waiting for connectivity", "url", b.url)
		b.setConnectivity(netstate.NotConnected)
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, neterr.New(neterr.Unknown, err)
	}
	for k, vs := range b.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return nil, neterr.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, neterr.New(neterr.Unspecified, &StatusError{Code: resp.StatusCode})
	}
	return resp, nil
}

func (b *base) setConnectivity(s netstate.State) {
	if b.cfg.Tracker != nil {
		b.cfg.Tracker.Set(s)
	}
}

// finish records the outcome and releases the queue. It runs before the
// caller's completion so the next job is not held up by it.
func (b *base) finish(err error, started time.Time) {
	kind := "ok"
	if err != nil {
		k := neterr.KindOf(err)
		kind = k.String()
		if k != neterr.Timeout && k != neterr.Cancelled {
			b.setConnectivity(netstate.Established)
		}
		b.log.Info("task failed", "url", b.url, "kind", kind, "err", err)
	} else {
		b.setConnectivity(netstate.Established)
		b.log.Debug("task completed", "url", b.url, "elapsed", time.Since(started))
	}
	metrics.TaskResults.WithLabelValues(b.kind, kind).Inc()
	metrics.TaskLatency.WithLabelValues(b.kind).Observe(time.Since(started).Seconds())

	if b.rel != nil {
		if rerr := b.rel.Release(); rerr != nil {
			b.log.Error("release queue", "err", rerr)
		}
	}
}
