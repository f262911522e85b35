package cli

import (
	"context"
	"time"

	"github.com/gridmate/fieldsync/internal/config"
	"github.com/gridmate/fieldsync/internal/fieldsync"
	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/logger"
	"github.com/gridmate/fieldsync/internal/lookup"
	"github.com/gridmate/fieldsync/internal/registry"
	"github.com/gridmate/fieldsync/internal/runstore"
)

// components is everything a command needs, wired from the config file.
type components struct {
	cfg      *config.Config
	log      *logger.Logger
	table    *hosttable.Client
	lookup   *lookup.Client
	registry *registry.Registry
	store    runstore.Store
}

func buildComponents(configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New()
	log.SetLevel(cfg.LogLevel)

	table, err := hosttable.NewClient(hosttable.ClientOptions{
		BaseURL:  cfg.HostTable.BaseURL,
		AppToken: cfg.HostTable.AppToken,
		TableID:  cfg.HostTable.TableID,
		TokenProvider: func(ctx context.Context) (string, error) {
			return cfg.HostTable.AccessToken, nil
		},
		UserAgent: "fieldsync",
	})
	if err != nil {
		return nil, err
	}
	lookupClient, err := lookup.NewClient(lookup.ClientOptions{
		BaseURL: cfg.Lookup.BaseURL,
		TokenProvider: func(ctx context.Context) (string, error) {
			return cfg.Lookup.AccessToken, nil
		},
		UserAgent: "fieldsync",
	})
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(registry.Options{
		DocURL:    cfg.Catalog.DocURL,
		LocalPath: cfg.Catalog.LocalPath,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	store, err := runstore.FromDSN(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	return &components{
		cfg:      cfg,
		log:      log,
		table:    table,
		lookup:   lookupClient,
		registry: reg,
		store:    store,
	}, nil
}

func (c *components) newRunner(events fieldsync.EventSink) (*fieldsync.Runner, error) {
	return fieldsync.NewRunner(fieldsync.RunnerOptions{
		Table:  c.table,
		Lookup: c.lookup,
		Store:  c.store,
		Events: events,
		Log:    c.log,
		Ensurer: fieldsync.EnsurerOptions{
			RetryPolicy: fieldsync.RetryPolicy{
				MaxAttempts: c.cfg.Sync.MaxRetries + 1,
				Delay:       time.Duration(c.cfg.Sync.RetryDelayMs) * time.Millisecond,
			},
			CreationPause: time.Duration(c.cfg.Sync.CreationPauseMs) * time.Millisecond,
			Log:           c.log,
		},
	})
}
