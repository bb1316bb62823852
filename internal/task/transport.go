package task

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"
)

// DefaultResourceTimeout bounds the total time of one task, including any
// time spent waiting for connectivity.
const DefaultResourceTimeout = 60 * time.Second

// DefaultConnectivityPoll is how often a request waiting for connectivity
// retries its dial.
const DefaultConnectivityPoll = time.Second

type waitingKey struct{}

// withWaitingHook attaches fn to ctx; the transport calls it once per request
// when the request starts waiting for connectivity.
func withWaitingHook(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, waitingKey{}, fn)
}

func waitingHook(ctx context.Context) func() {
	fn, _ := ctx.Value(waitingKey{}).(func())
	return fn
}

// waitingTransport keeps a request alive across transient connectivity loss.
// Dial-level failures are retried every poll interval until the request's
// context ends; other failures are returned as is.
type waitingTransport struct {
	base http.RoundTripper
	poll time.Duration
}

// NewClient returns an HTTP client whose requests wait for connectivity
// instead of failing fast. The total time is bounded by each request's
// context, not by the client.
func NewClient(poll time.Duration) *http.Client {
	if poll <= 0 {
		poll = DefaultConnectivityPoll
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{Transport: &waitingTransport{base: base, poll: poll}}
}

func (t *waitingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	notified := false
	for {
		resp, err := t.base.RoundTrip(req)
		if err == nil || !isConnectivityError(err) || !replayable(req) {
			return resp, err
		}
		if !notified {
			notified = true
			if fn := waitingHook(ctx); fn != nil {
				fn()
			}
		}
		timer := time.NewTimer(t.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func replayable(req *http.Request) bool {
	return (req.Method == http.MethodGet || req.Method == http.MethodHead) &&
		(req.Body == nil || req.Body == http.NoBody)
}

// isConnectivityError reports failures that mean the host could not be
// reached at all, as opposed to a reached host misbehaving.
func isConnectivityError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETDOWN) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" && !opErr.Timeout()
	}
	return false
}
