package v1

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tinoosan/ghusers/internal/reqid"
)

func serveWithID(incoming string) (*httptest.ResponseRecorder, string) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = reqid.From(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(headerRequestID, incoming)
	}
	h.ServeHTTP(rr, req)
	return rr, seen
}

func TestRequestIDMiddleware_GeneratesAndEchoes(t *testing.T) {
	rr, seen := serveWithID("")
	got := rr.Header().Get(headerRequestID)
	if got == "" {
		t.Fatalf("expected non-empty %s header", headerRequestID)
	}
	if seen != got {
		t.Fatalf("context id %q differs from header %q", seen, got)
	}
}

func TestRequestIDMiddleware_HonorsIncoming(t *testing.T) {
	rr, seen := serveWithID("abc123")
	if rr.Header().Get(headerRequestID) != "abc123" || seen != "abc123" {
		t.Fatalf("expected abc123, got header %q context %q", rr.Header().Get(headerRequestID), seen)
	}
}

func TestRequestIDMiddleware_ReplacesUnacceptable(t *testing.T) {
	for _, in := range []string{strings.Repeat("x", maxRequestIDLen+1), "has space", "tab\tid"} {
		rr, _ := serveWithID(in)
		if got := rr.Header().Get(headerRequestID); got == in || got == "" {
			t.Fatalf("incoming %q should have been replaced, got %q", in, got)
		}
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(ErrBadAvatarID); got != http.StatusInternalServerError {
		t.Fatalf("unmapped error = %d", got)
	}
}
