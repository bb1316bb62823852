package reqid

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithFrom(t *testing.T) {
	if _, ok := From(context.Background()); ok {
		t.Fatalf("empty context should carry no id")
	}
	ctx := With(context.Background(), "abc123")
	if id, ok := From(ctx); !ok || id != "abc123" {
		t.Fatalf("From = %q, %v", id, ok)
	}
	if _, ok := From(With(context.Background(), "")); ok {
		t.Fatalf("empty id should not be reported")
	}
}

func TestLoggerTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	Logger(With(context.Background(), "abc123"), l).Info("hello")
	if !strings.Contains(buf.String(), "request_id=abc123") {
		t.Fatalf("missing request_id in %q", buf.String())
	}

	buf.Reset()
	Logger(context.Background(), l).Info("hello")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request_id in %q", buf.String())
	}
}
