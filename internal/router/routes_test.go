package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tinoosan/ghusers/internal/data"
	"github.com/tinoosan/ghusers/internal/metrics"
	"github.com/tinoosan/ghusers/internal/netstate"
)

type stubUsers struct{}

func (stubUsers) List(context.Context, int64) (data.Users, error) { return data.Users{}, nil }
func (stubUsers) Profile(context.Context, string) (*data.Profile, error) { return nil, data.ErrNotFound }
func (stubUsers) Avatar(context.Context, int64) ([]byte, error) { return nil, data.ErrNoAvatar }
func (stubUsers) PurgeAvatar(context.Context, int64) error { return nil }
func (stubUsers) Note(context.Context, int64) (string, error) { return "", nil }
func (stubUsers) SetNote(context.Context, int64, string) error { return nil }
func (stubUsers) Connectivity() netstate.State { return netstate.Established }
func (stubUsers) WatchConnectivity(int) (<-chan netstate.State, func()) { return nil, func() {} }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMetricsEndpointEmitsFamilies(t *testing.T) {
	metrics.Register()
	metrics.JobsStarted.Inc()
	metrics.TaskResults.WithLabelValues("data", "ok").Inc()
	metrics.TaskLatency.WithLabelValues("data").Observe(0.02)

	r := New(quiet(), stubUsers{}, "sekrit")

	// Scrapes do not need the API token.
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{
		"ghusers_queue_jobs_started_total",
		"ghusers_task_results_total",
		"ghusers_task_latency_seconds_count",
		"ghusers_connectivity_established",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("missing %s in metrics", name)
		}
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	r := New(quiet(), stubUsers{}, "")
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
