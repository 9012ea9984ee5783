package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/search"
)

// ErrUnknownProvider is returned when a configured provider name has neither
// a built-in profile nor a complete definition in the config file.
var ErrUnknownProvider = errors.New("unknown provider")

const searxName = "searxng"

// App owns the search engine built from a Config. It is safe for concurrent
// use; nothing in it changes after New returns.
type App struct {
	cfg    Config
	engine search.Provider
}

// New validates cfg and wires the primary provider, the optional secondary
// and the fallback between them. Extra options are passed to every scraping
// client after the ones derived from cfg.
func New(cfg Config, opts ...search.Option) (*App, error) {
	if cfg.Primary == "" {
		cfg.Primary = DefaultPrimary
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	hc := newSearchHTTPClient(cfg.Timeout)
	clientOpts := []search.Option{search.WithHTTPClient(hc)}
	if cfg.MaxAttempts > 0 {
		clientOpts = append(clientOpts, search.WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, search.WithTimeout(cfg.Timeout))
	}
	if cfg.BaseDelay > 0 {
		clientOpts = append(clientOpts, search.WithBackoff(cfg.BaseDelay, -1))
	}
	clientOpts = append(clientOpts, opts...)

	primaryCfg, err := resolveProvider(cfg, cfg.Primary)
	if err != nil {
		return nil, err
	}
	primary := search.NewClient(primaryCfg, clientOpts...)

	var secondary search.Provider
	if name := strings.ToLower(trim(cfg.Secondary)); name != "" && !cfg.DisableFallback {
		if name == searxName {
			secondary = &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, HTTPClient: hc, UserAgent: cfg.UserAgent}
		} else {
			secondaryCfg, err := resolveProvider(cfg, name)
			if err != nil {
				return nil, err
			}
			secondary = search.NewClient(secondaryCfg, clientOpts...)
		}
	}

	a := &App{cfg: cfg, engine: search.NewFallback(primary, secondary, !cfg.DisableFallback)}
	ev := log.Debug().Str("primary", primary.Name()).Bool("fallback", !cfg.DisableFallback)
	if secondary != nil {
		ev = ev.Str("secondary", secondary.Name())
	}
	ev.Msg("search engine ready")
	return a, nil
}

// Search runs one query with the configured result count.
func (a *App) Search(ctx context.Context, query string) (*search.Response, error) {
	return a.engine.Search(ctx, query, a.cfg.Count)
}

// Outcome is Search folded into a single renderable value.
func (a *App) Outcome(ctx context.Context, query string) search.Outcome {
	return search.NewOutcome(a.Search(ctx, query))
}
