package app

import (
	"embed"
	"log/slog"

	"github.com/whatslukewarm/feedgen/pkg/bsky"
	"github.com/whatslukewarm/feedgen/pkg/cache"
	"github.com/whatslukewarm/feedgen/pkg/config"
	"github.com/whatslukewarm/feedgen/pkg/secrets"
	"github.com/whatslukewarm/feedgen/pkg/store"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

//go:embed assets/*
var assets embed.FS

// App creates a new instance of the application, initializing the cache,
// feed index store, and the AppView lookup client.
type App struct {
	Config config.Config
	Cache  Cache
	Store  Store
	Lookup Lookup
}

func NewApp() (App, error) {
	cfg, err := config.New()
	if err != nil {
		return App{}, err
	}

	valkey, err := cache.New(cfg)
	if err != nil {
		return App{}, err
	}

	sqlite, err := store.New(cfg.DatabasePath)
	if err != nil {
		return App{}, err
	}

	return App{
		Config: cfg,
		Cache:  valkey,
		Store:  sqlite,
		Lookup: newLookup(cfg),
	}, nil
}

// newLookup builds the AppView client for the strict filter profile.
// Credentials come from Secrets Manager when available; without them the
// client still works against the public endpoint, minus viewer state.
func newLookup(cfg config.Config) Lookup {
	if !cfg.LookupEnabled || cfg.Profile == config.ProfileMinimal {
		return nil
	}

	handle, password := "", ""
	sm, err := secrets.New()
	if err != nil {
		slog.Warn(util.WrapErr("failed to create secrets client", err).Error())
	} else {
		if handle, err = sm.GetBlueskyHandle(); err != nil {
			slog.Warn(util.WrapErr("failed to read bluesky handle", err).Error())
		}
		if password, err = sm.GetBlueskyAppPassword(); err != nil {
			slog.Warn(util.WrapErr("failed to read bluesky app password", err).Error())
		}
	}

	client, err := bsky.NewClient(handle, password)
	if err != nil {
		slog.Warn(util.WrapErr("failed to create bsky client", err).Error())
		return nil
	}
	return client
}

func (a App) Close() {
	a.Cache.Close()
	a.Store.Close()
}
