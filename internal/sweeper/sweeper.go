// Package sweeper periodically clears scratch files that interrupted
// downloads left behind in the cache.
package sweeper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/ghusers/internal/metrics"
)

// Scratch is the part of the cache the sweeper drives.
type Scratch interface {
	SweepScratch(olderThan time.Duration) (int, error)
}

// Sweeper runs SweepScratch once at start and then every interval.
type Sweeper struct {
	scratch  Scratch
	interval time.Duration
	maxAge   time.Duration
	log      *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(log *slog.Logger, scratch Scratch, interval, maxAge time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{scratch: scratch, interval: interval, maxAge: maxAge, log: log}
}

// Run starts the sweep loop.
func (s *Sweeper) Run() {
	s.stop = make(chan struct{})
	// Tag this run with a stable operation_id for easier correlation.
	s.log = s.log.With("operation_id", uuid.NewString())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-t.C:
				s.sweep()
			}
		}
	}()
}

// Stop terminates the loop and waits for a sweep in progress.
func (s *Sweeper) Stop() {
	if s.stop != nil {
		close(s.stop)
		s.wg.Wait()
		s.stop = nil
	}
}

func (s *Sweeper) sweep() {
	n, err := s.scratch.SweepScratch(s.maxAge)
	if err != nil {
		s.log.Error("sweep scratch", "err", err)
		return
	}
	if n > 0 {
		metrics.ScratchSwept.Add(float64(n))
		s.log.Info("swept stale scratch files", "count", n)
	}
}
