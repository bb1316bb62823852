package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tinoosan/ghusers/internal/cache"
	"github.com/tinoosan/ghusers/internal/data"
	"github.com/tinoosan/ghusers/internal/github"
	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netq"
	"github.com/tinoosan/ghusers/internal/netstate"
	"github.com/tinoosan/ghusers/internal/repo"
	"github.com/tinoosan/ghusers/internal/reqid"
	"github.com/tinoosan/ghusers/internal/task"
	"golang.org/x/sync/singleflight"
)

// Users fetches user listings, profiles and avatars through the serial
// network queue.
type Users interface {
	List(ctx context.Context, since int64) (data.Users, error)
	Profile(ctx context.Context, login string) (*data.Profile, error)
	Avatar(ctx context.Context, id int64) ([]byte, error)
	PurgeAvatar(ctx context.Context, id int64) error
	// Note returns the local note for a user seen in a listing or profile.
	Note(ctx context.Context, id int64) (string, error)
	// SetNote saves a note for a seen user; empty text removes it.
	SetNote(ctx context.Context, id int64, text string) error
	Connectivity() netstate.State
	WatchConnectivity(buf int) (<-chan netstate.State, func())
}

// ErrUndecodable is returned when a downloaded avatar is not a known image
// format.
var ErrUndecodable = errors.New("avatar is not a decodable image")

// Queue is the part of the network queue the service drives.
type Queue interface {
	Enqueue(job netq.Job)
	Resume() bool
}

// Options wires the service to its collaborators. Queue, Tracker, Cache and
// Endpoints are required; Repo defaults to an in-memory store.
type Options struct {
	Queue           Queue
	Repo            repo.UserRepo
	Tracker         *netstate.Tracker
	Cache           *cache.Cache
	Endpoints       *github.Endpoints
	Client          *http.Client
	ResourceTimeout time.Duration
	Token           string
	UserAgent       string
	Log             *slog.Logger
}

type users struct {
	q       Queue
	tracker *netstate.Tracker
	cache   *cache.Cache
	ep      *github.Endpoints
	api     task.Config
	assets  task.Config
	log     *slog.Logger

	known   repo.UserRepo
	flights singleflight.Group
}

func NewUsers(o Options) Users {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.UserAgent == "" {
		o.UserAgent = "ghusers"
	}
	if o.Repo == nil {
		o.Repo = repo.NewInMemoryUserRepo()
	}
	apiHeader := http.Header{}
	apiHeader.Set("Accept", "application/vnd.github+json")
	apiHeader.Set("User-Agent", o.UserAgent)
	if o.Token != "" {
		apiHeader.Set("Authorization", "Bearer "+o.Token)
	}
	// Avatars live on a different host; the API token is not sent there.
	assetHeader := http.Header{}
	assetHeader.Set("User-Agent", o.UserAgent)

	base := task.Config{
		Client:          o.Client,
		ResourceTimeout: o.ResourceTimeout,
		Tracker:         o.Tracker,
		Log:             o.Log,
	}
	api, assets := base, base
	api.Header = apiHeader
	assets.Header = assetHeader

	return &users{
		q:       o.Queue,
		tracker: o.Tracker,
		cache:   o.Cache,
		ep:      o.Endpoints,
		api:     api,
		assets:  assets,
		log:     o.Log,
		known:   o.Repo,
	}
}

func (s *users) List(ctx context.Context, since int64) (data.Users, error) {
	if since < 0 {
		return nil, data.ErrBadCursor
	}
	body, err := s.fetch(ctx, s.ep.UserList(since))
	if err != nil {
		return nil, err
	}
	list := data.Users{}
	if err := list.FromJSON(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if err := s.known.Upsert(ctx, list...); err != nil {
		s.logger(ctx).Warn("remember users", "err", err)
	}
	for _, u := range list {
		if u != nil {
			u.Note, _ = s.known.Note(ctx, u.ID)
		}
	}
	s.logger(ctx).Debug("listed users", "since", since, "count", len(list))
	return list, nil
}

func (s *users) Profile(ctx context.Context, login string) (*data.Profile, error) {
	if !validLogin(login) {
		return nil, data.ErrBadLogin
	}
	body, err := s.fetch(ctx, s.ep.UserProfile(login))
	if err != nil {
		return nil, err
	}
	p := &data.Profile{}
	if err := p.FromJSON(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := s.known.Upsert(ctx, &p.User); err != nil {
		s.logger(ctx).Warn("remember user", "login", login, "err", err)
	}
	p.Note, _ = s.known.Note(ctx, p.ID)
	return p, nil
}

// Avatar returns the cached avatar for id, downloading it first when it is
// not cached. Concurrent callers for the same id share one download.
func (s *users) Avatar(ctx context.Context, id int64) ([]byte, error) {
	if id <= 0 {
		return nil, data.ErrBadID
	}
	if b, ok := s.cache.Load(id); ok {
		return b, nil
	}
	u, err := s.known.Get(ctx, id)
	if err != nil || u.AvatarURL == "" {
		return nil, data.ErrNoAvatar
	}
	src := u.AvatarURL

	// The shared download must outlive any single caller's context.
	shared := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		if b, ok := s.cache.Load(id); ok {
			return b, nil
		}
		if err := s.download(shared, src, s.cache.PathFor(id)); err != nil {
			return nil, err
		}
		b, ok := s.cache.Load(id)
		if !ok {
			return nil, ErrUndecodable
		}
		return b, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, neterr.Wrap(ctx.Err())
	}
}

func (s *users) PurgeAvatar(ctx context.Context, id int64) error {
	if id <= 0 {
		return data.ErrBadID
	}
	if err := s.cache.RemoveAvatar(id); err != nil {
		return fmt.Errorf("purge avatar %d: %w", id, err)
	}
	s.logger(ctx).Info("avatar purged", "user_id", id)
	return nil
}

func (s *users) Note(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", data.ErrBadID
	}
	return s.known.Note(ctx, id)
}

func (s *users) SetNote(ctx context.Context, id int64, text string) error {
	if id <= 0 {
		return data.ErrBadID
	}
	if err := data.CheckNote(text); err != nil {
		return err
	}
	if err := s.known.SetNote(ctx, id, text); err != nil {
		return fmt.Errorf("note for user %d: %w", id, err)
	}
	s.logger(ctx).Info("note saved", "user_id", id, "removed", text == "")
	return nil
}

func (s *users) Connectivity() netstate.State { return s.tracker.Current() }

func (s *users) WatchConnectivity(buf int) (<-chan netstate.State, func()) {
	return s.tracker.Subscribe(buf)
}

// fetch runs a data task through the queue and waits for its body.
func (s *users) fetch(ctx context.Context, url string) ([]byte, error) {
	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	cfg := s.api
	cfg.Log = s.logger(ctx)
	t := task.NewDataTask(ctx, cfg, url, func(b []byte, err error) {
		ch <- result{b, err}
	})
	s.q.Enqueue(t)
	s.q.Resume()

	select {
	case r := <-ch:
		return r.body, mapStatus(r.err)
	case <-ctx.Done():
		t.Cancel()
		return nil, neterr.Wrap(ctx.Err())
	}
}

func (s *users) download(ctx context.Context, url, dest string) error {
	ch := make(chan error, 1)
	cfg := s.assets
	cfg.Log = s.logger(ctx)
	t := task.NewDownloadTask(ctx, cfg, url, dest, s.cache, func(err error) { ch <- err })
	s.q.Enqueue(t)
	s.q.Resume()
	return mapStatus(<-ch)
}

func (s *users) logger(ctx context.Context) *slog.Logger {
	return reqid.Logger(ctx, s.log)
}

// mapStatus turns an upstream 404 into data.ErrNotFound, keeping the
// network error in the chain.
func mapStatus(err error) error {
	var se *task.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", data.ErrNotFound, err)
	}
	return err
}

func validLogin(login string) bool {
	if login == "" || len(login) > 39 {
		return false
	}
	return !strings.ContainsAny(login, "/?#% \t\n")
}
