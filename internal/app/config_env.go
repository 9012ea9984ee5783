package app

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This lets env take precedence over
// values coming from a config file; the CLI re-applies explicit flags last.
func ApplyEnvOverrides(cfg *Config) {
    if cfg == nil { return }

    setInt := func(dst *int, envKey string) {
        if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
            if n, err := strconv.Atoi(s); err == nil && n > 0 {
                *dst = n
            }
        }
    }
    setDuration := func(dst *time.Duration, envKey string) {
        if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
            if d, err := time.ParseDuration(s); err == nil && d > 0 {
                *dst = d
            }
        }
    }
    setString := func(dst *string, envKeys ...string) {
        for _, k := range envKeys {
            if v := strings.TrimSpace(os.Getenv(k)); v != "" {
                *dst = v
            }
        }
    }
    // Booleans override when env present and truthy/falsey
    setBool := func(dst *bool, envKey string) {
        if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
            switch s {
            case "1", "true", "yes", "on":
                *dst = true
            case "0", "false", "no", "off":
                *dst = false
            }
        }
    }

    setInt(&cfg.Count, "GOSEARCH_COUNT")
    setInt(&cfg.MaxAttempts, "GOSEARCH_ATTEMPTS")
    setDuration(&cfg.Timeout, "GOSEARCH_TIMEOUT")
    setDuration(&cfg.BaseDelay, "GOSEARCH_BASE_DELAY")
    setString(&cfg.Primary, "GOSEARCH_PRIMARY")
    setString(&cfg.Secondary, "GOSEARCH_SECONDARY")
    setString(&cfg.UserAgent, "GOSEARCH_USER_AGENT")

    // Support both SEARX_URL and SEARXNG_URL; SEARXNG_URL wins when both are set
    setString(&cfg.SearxURL, "SEARX_URL", "SEARXNG_URL")
    setString(&cfg.SearxKey, "SEARX_KEY", "SEARXNG_KEY")

    fallback := !cfg.DisableFallback
    setBool(&fallback, "GOSEARCH_FALLBACK")
    cfg.DisableFallback = !fallback

    setBool(&cfg.JSON, "GOSEARCH_JSON")
    setBool(&cfg.Verbose, "VERBOSE")
    setBool(&cfg.Verbose, "GOSEARCH_VERBOSE")
}
