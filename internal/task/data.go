package task

import (
	"context"
	"io"
	"time"

	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netq"
)

// DataTask fetches a URL into memory.
type DataTask struct {
	base
	done func([]byte, error)
}

var _ netq.Job = (*DataTask)(nil)

// NewDataTask builds a fetch-to-memory task. done is called exactly once, on
// a background goroutine, with the body or a *neterr.Error. Cancelling ctx
// cancels the task.
func NewDataTask(ctx context.Context, cfg Config, url string, done func([]byte, error)) *DataTask {
	t := &DataTask{done: done}
	t.init(ctx, "data", url, cfg)
	return t
}

// Start issues the request and releases rel when done. Later calls do
// nothing.
func (t *DataTask) Start(rel netq.Releaser) {
	t.launch(rel, t.run)
}

func (t *DataTask) run(ctx context.Context) {
	started := time.Now()
	body, err := t.get(ctx)
	if err != nil {
		body = nil
	}
	t.finish(err, started)
	if t.done != nil {
		t.done(body, err)
	}
}

func (t *DataTask) get(ctx context.Context) ([]byte, error) {
	resp, err := t.fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, neterr.Wrap(err)
	}
	if len(body) == 0 {
		return nil, neterr.New(neterr.MissingData, nil)
	}
	return body, nil
}
