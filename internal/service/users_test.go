package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinoosan/ghusers/internal/cache"
	"github.com/tinoosan/ghusers/internal/data"
	"github.com/tinoosan/ghusers/internal/github"
	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netq"
	"github.com/tinoosan/ghusers/internal/netstate"
	"github.com/tinoosan/ghusers/internal/task"
)

// fakeAPI serves a tiny users API plus avatar images.
type fakeAPI struct {
	srv         *httptest.Server
	avatarHits  atomic.Int32
	apiAuth     atomic.Value
	avatarAuth  atomic.Value
	avatarDelay time.Duration
	block       chan struct{}
}

func newFakeAPI(t *testing.T, avatarDelay time.Duration, blockList bool) *fakeAPI {
	t.Helper()
	f := &fakeAPI{avatarDelay: avatarDelay}
	if blockList {
		f.block = make(chan struct{})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		f.apiAuth.Store(r.Header.Get("Authorization"))
		if f.block != nil {
			select {
			case <-f.block:
			case <-r.Context().Done():
				return
			}
		}
		if r.URL.Query().Get("since") == "" {
			http.Error(w, "since required", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `[{"id":1,"login":"mojombo","avatar_url":"%[1]s/avatars/1"},
			{"id":2,"login":"defunkt","avatar_url":"%[1]s/avatars/2"},
			{"id":3,"login":"broken","avatar_url":"%[1]s/avatars/broken"}]`, f.srv.URL)
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		login := strings.TrimPrefix(r.URL.Path, "/users/")
		if login != "mojombo" {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id":1,"login":"mojombo","avatar_url":"%s/avatars/1","name":"Tom","followers":23000}`, f.srv.URL)
	})
	mux.HandleFunc("/avatars/", func(w http.ResponseWriter, r *http.Request) {
		f.avatarHits.Add(1)
		f.avatarAuth.Store(r.Header.Get("Authorization"))
		if f.avatarDelay > 0 {
			time.Sleep(f.avatarDelay)
		}
		if strings.HasSuffix(r.URL.Path, "/broken") {
			_, _ = w.Write([]byte("not an image"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(t))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Errorf("encode png: %v", err)
	}
	return buf.Bytes()
}

type harness struct {
	svc     Users
	cache   *cache.Cache
	queue   *netq.Queue
	tracker *netstate.Tracker
}

func newHarness(t *testing.T, f *fakeAPI) harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ep, err := github.NewEndpoints(f.srv.URL)
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	h := harness{
		cache:   cache.New(t.TempDir(), log),
		queue:   netq.New(log),
		tracker: netstate.New(log),
	}
	h.svc = NewUsers(Options{
		Queue:           h.queue,
		Tracker:         h.tracker,
		Cache:           h.cache,
		Endpoints:       ep,
		Client:          task.NewClient(10 * time.Millisecond),
		ResourceTimeout: 2 * time.Second,
		Token:           "sekrit",
		Log:             log,
	})
	return h
}

func TestListRemembersAvatars(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ctx := context.Background()

	if _, err := h.svc.Avatar(ctx, 1); !errors.Is(err, data.ErrNoAvatar) {
		t.Fatalf("avatar before listing: %v", err)
	}

	list, err := h.svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].Login != "mojombo" {
		t.Fatalf("unexpected list %+v", list)
	}
	if got := f.apiAuth.Load(); got != "Bearer sekrit" {
		t.Fatalf("api Authorization = %v", got)
	}

	b, err := h.svc.Avatar(ctx, 1)
	if err != nil {
		t.Fatalf("Avatar: %v", err)
	}
	if !bytes.Equal(b, pngBytes(t)) {
		t.Fatalf("avatar bytes differ from served image")
	}
	if got := f.avatarAuth.Load(); got != "" {
		t.Fatalf("token leaked to avatar host: %v", got)
	}
	if h.cache.Exists(h.cache.PathFor(1)) != cache.File {
		t.Fatalf("avatar not cached at %s", h.cache.PathFor(1))
	}

	// Second call is served from the cache.
	if _, err := h.svc.Avatar(ctx, 1); err != nil {
		t.Fatalf("cached Avatar: %v", err)
	}
	if f.avatarHits.Load() != 1 {
		t.Fatalf("avatar fetched %d times, want 1", f.avatarHits.Load())
	}
}

func TestConcurrentAvatarSharesDownload(t *testing.T) {
	f := newFakeAPI(t, 30*time.Millisecond, false)
	h := newHarness(t, f)
	ctx := context.Background()
	if _, err := h.svc.List(ctx, 0); err != nil {
		t.Fatalf("List: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Avatar(ctx, 2)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Avatar: %v", err)
		}
	}
	if f.avatarHits.Load() != 1 {
		t.Fatalf("avatar fetched %d times, want 1", f.avatarHits.Load())
	}
}

func TestAvatarUndecodable(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ctx := context.Background()
	if _, err := h.svc.List(ctx, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := h.svc.Avatar(ctx, 3); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("err = %v, want ErrUndecodable", err)
	}
}

func TestPurgeAvatarForcesRedownload(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ctx := context.Background()
	if _, err := h.svc.List(ctx, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := h.svc.Avatar(ctx, 1); err != nil {
		t.Fatalf("Avatar: %v", err)
	}
	if err := h.svc.PurgeAvatar(ctx, 1); err != nil {
		t.Fatalf("PurgeAvatar: %v", err)
	}
	if h.cache.Exists(h.cache.PathFor(1)) != cache.NotExist {
		t.Fatalf("avatar still cached after purge")
	}
	// Purging a missing entry is not an error.
	if err := h.svc.PurgeAvatar(ctx, 1); err != nil {
		t.Fatalf("second PurgeAvatar: %v", err)
	}
	if _, err := h.svc.Avatar(ctx, 1); err != nil {
		t.Fatalf("Avatar after purge: %v", err)
	}
	if f.avatarHits.Load() != 2 {
		t.Fatalf("avatar fetched %d times, want 2", f.avatarHits.Load())
	}
}

func TestProfile(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ctx := context.Background()

	p, err := h.svc.Profile(ctx, "mojombo")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Name != "Tom" || p.Followers != 23000 {
		t.Fatalf("unexpected profile %+v", p)
	}
	// A profile also makes the avatar reachable.
	if _, err := h.svc.Avatar(ctx, 1); err != nil {
		t.Fatalf("Avatar after Profile: %v", err)
	}

	_, err = h.svc.Profile(ctx, "nobody")
	if !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if neterr.KindOf(err) != neterr.Unspecified {
		t.Fatalf("kind = %v, want unspecified", neterr.KindOf(err))
	}

	if _, err := h.svc.Profile(ctx, "a/b"); !errors.Is(err, data.ErrBadLogin) {
		t.Fatalf("err = %v, want ErrBadLogin", err)
	}
}

func TestCallerCancelDoesNotWedgeQueue(t *testing.T) {
	f := newFakeAPI(t, 0, true)
	h := newHarness(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.svc.List(ctx, 0)
	if k := neterr.KindOf(err); k != neterr.Timeout {
		t.Fatalf("kind = %v (%v), want timeout", k, err)
	}

	close(f.block)
	if _, err := h.svc.List(context.Background(), 0); err != nil {
		t.Fatalf("List after cancelled call: %v", err)
	}
	if h.svc.Connectivity() != netstate.Established {
		t.Fatalf("connectivity = %v", h.svc.Connectivity())
	}
}

func TestWatchConnectivity(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ch, stop := h.svc.WatchConnectivity(1)
	defer stop()

	h.tracker.Set(netstate.NotConnected)
	select {
	case s := <-ch:
		if s != netstate.NotConnected {
			t.Fatalf("state = %v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("no connectivity notification")
	}
	if h.svc.Connectivity() != netstate.NotConnected {
		t.Fatalf("Connectivity = %v", h.svc.Connectivity())
	}
}

func TestNotesFollowUsers(t *testing.T) {
	f := newFakeAPI(t, 0, false)
	h := newHarness(t, f)
	ctx := context.Background()

	if err := h.svc.SetNote(ctx, 1, "unseen"); !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("note before the user is known: %v", err)
	}
	if err := h.svc.SetNote(ctx, 0, "x"); !errors.Is(err, data.ErrBadID) {
		t.Fatalf("bad id: %v", err)
	}

	if _, err := h.svc.List(ctx, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := h.svc.SetNote(ctx, 1, "founder"); err != nil {
		t.Fatalf("SetNote: %v", err)
	}
	long := strings.Repeat("é", data.MaxNoteLen+1)
	if err := h.svc.SetNote(ctx, 1, long); !errors.Is(err, data.ErrNoteTooLong) {
		t.Fatalf("long note: %v", err)
	}

	p, err := h.svc.Profile(ctx, "mojombo")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Note != "founder" {
		t.Fatalf("profile note = %q", p.Note)
	}
	list, err := h.svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list[0].Note != "founder" || list[1].Note != "" {
		t.Fatalf("list notes = %q, %q", list[0].Note, list[1].Note)
	}

	if err := h.svc.SetNote(ctx, 1, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, err := h.svc.Note(ctx, 1); err != nil || n != "" {
		t.Fatalf("note after clear = %q, %v", n, err)
	}
}
