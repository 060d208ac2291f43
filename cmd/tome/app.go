package main

import (
	"context"
	"fmt"

	"github.com/tomehq/tome/internal/delivery"
	"github.com/tomehq/tome/internal/dispatch"
	"github.com/tomehq/tome/internal/github"
	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/pipeline"
	"github.com/tomehq/tome/internal/runlock"
	"github.com/tomehq/tome/internal/storage"
	"github.com/tomehq/tome/internal/vcs"
)

// engine bundles everything a pipeline run needs. Commands that only read
// the ledger use openStore instead.
type engine struct {
	store      storage.Store
	deliveries *delivery.Tracker
	locker     runlock.Locker
	dispatcher *dispatch.Dispatcher
}

func openStore() (storage.Store, error) {
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return store, nil
}

func providerFactory(token string) (vcs.Provider, error) {
	client, err := github.NewClient(github.Options{
		Token:     token,
		BaseURL:   cfg.GitHub.BaseURL,
		RateLimit: cfg.GitHub.RateLimit,
		Timeout:   cfg.GitHub.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newEngine wires the ledger, generator, run lock and delivery tracker into
// a dispatcher. onComplete receives every finished run.
func newEngine(ctx context.Context, onComplete func(dispatch.Outcome)) (*engine, error) {
	if result := cfg.Validate(); result.HasErrors() {
		return nil, result.Err()
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	rt := &engine{store: store}

	gen, err := llm.NewGenerator(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize text generator: %w", err)
	}

	rt.locker, err = runlock.New(ctx, cfg.RunLock)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize run lock: %w", err)
	}

	opts := dispatch.Options{
		MaxConcurrentRuns: cfg.Dispatch.MaxConcurrentRuns,
		RunTimeout:        cfg.Dispatch.RunTimeout,
		OnComplete:        onComplete,
	}
	if cfg.Delivery.Path != "" {
		rt.deliveries, err = delivery.Open(cfg.Delivery.Path, cfg.Delivery.TTL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if removed, err := rt.deliveries.Prune(); err != nil {
			logger.WithError(err).Warn("Failed to prune delivery records")
		} else if removed > 0 {
			logger.WithField("removed", removed).Debug("Pruned expired delivery records")
		}
		opts.Deliveries = rt.deliveries
	}

	pipe := pipeline.New(cfg, gen, store, store, providerFactory)
	rt.dispatcher = dispatch.New(ctx, pipe, rt.locker, store, opts)
	return rt, nil
}

// Close waits for in-flight runs and releases resources.
func (rt *engine) Close() {
	if rt.dispatcher != nil {
		rt.dispatcher.Wait()
	}
	if closer, ok := rt.locker.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close run lock")
		}
	}
	if rt.deliveries != nil {
		if err := rt.deliveries.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close delivery tracker")
		}
	}
	if err := rt.store.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close ledger")
	}
}
