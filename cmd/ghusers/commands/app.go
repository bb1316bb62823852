package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tinoosan/ghusers/internal/cache"
	"github.com/tinoosan/ghusers/internal/config"
	"github.com/tinoosan/ghusers/internal/github"
	"github.com/tinoosan/ghusers/internal/logging"
	"github.com/tinoosan/ghusers/internal/netq"
	"github.com/tinoosan/ghusers/internal/netstate"
	"github.com/tinoosan/ghusers/internal/service"
	"github.com/tinoosan/ghusers/internal/task"
)

// app is the composition root shared by every command.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	closer  io.Closer
	cache   *cache.Cache
	queue   *netq.Queue
	tracker *netstate.Tracker
	users   service.Users
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	root := cfg.Cache.Root
	if root == "" {
		if root, err = cache.DefaultRoot("ghusers"); err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("resolve cache root: %w", err)
		}
	}
	ep, err := github.NewEndpoints(cfg.API.BaseURL)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		closer:  closer,
		cache:   cache.New(root, log),
		queue:   netq.New(log),
		tracker: netstate.New(log),
	}
	a.users = service.NewUsers(service.Options{
		Queue:           a.queue,
		Tracker:         a.tracker,
		Cache:           a.cache,
		Endpoints:       ep,
		Client:          task.NewClient(cfg.Network.ConnectivityPoll),
		ResourceTimeout: cfg.Network.ResourceTimeout,
		Token:           cfg.API.Token,
		Log:             log,
	})
	log.Debug("app ready", "cache_root", root, "api", cfg.API.BaseURL)
	return a, nil
}

func (a *app) Close() error { return a.closer.Close() }
