package app

import (
    "time"

    "github.com/hyperifyio/gosearch/internal/search"
)

// Flag defaults. File config only replaces a value that still equals its default.
const (
    DefaultPrimary     = "google"
    DefaultSecondary   = "duckduckgo"
    DefaultMaxAttempts = 3
    DefaultTimeout     = 10 * time.Second
    DefaultBaseDelay   = time.Second

    // MaxAttemptsLimit is the largest accepted MaxAttempts.
    MaxAttemptsLimit = 10
)

// Config holds runtime configuration for the application.
type Config struct {
    // Search
    Count           int
    MaxAttempts     int
    Timeout         time.Duration
    BaseDelay       time.Duration
    Primary         string
    Secondary       string
    DisableFallback bool
    // UserAgent replaces the User-Agent of every scraping profile when set.
    UserAgent string

    // SearxNG, used when Secondary is "searxng"
    SearxURL string
    SearxKey string

    // Providers overrides built-in profiles by name, or defines new ones.
    Providers map[string]search.ProviderConfig

    // Output
    JSON    bool
    Verbose bool
}
