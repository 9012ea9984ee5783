package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "maps"
    "os"
    "path/filepath"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"

    "github.com/hyperifyio/gosearch/internal/search"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
    Count     int           `yaml:"count" json:"count"`
    Attempts  int           `yaml:"attempts" json:"attempts"`
    Timeout   time.Duration `yaml:"timeout" json:"timeout"`
    BaseDelay time.Duration `yaml:"baseDelay" json:"baseDelay"`
    Primary   string        `yaml:"primary" json:"primary"`
    Secondary string        `yaml:"secondary" json:"secondary"`
    Fallback  *bool         `yaml:"fallback" json:"fallback"`
    UserAgent string        `yaml:"userAgent" json:"userAgent"`

    Searx struct {
        URL string `yaml:"url" json:"url"`
        Key string `yaml:"key" json:"key"`
    } `yaml:"searx" json:"searx"`

    Output struct {
        JSON bool `yaml:"json" json:"json"`
    } `yaml:"output" json:"output"`
    Verbose bool `yaml:"verbose" json:"verbose"`

    // Providers patches built-in profiles; only the fields present are changed.
    Providers map[string]search.ProviderConfig `yaml:"providers" json:"providers"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := filepath.Ext(path); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default, so explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    if (cfg.Count == 0 || cfg.Count == search.DefaultCount) && fc.Count > 0 { cfg.Count = fc.Count }
    if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == DefaultMaxAttempts) && fc.Attempts > 0 { cfg.MaxAttempts = fc.Attempts }
    if (cfg.Timeout == 0 || cfg.Timeout == DefaultTimeout) && fc.Timeout > 0 { cfg.Timeout = fc.Timeout }
    if (cfg.BaseDelay == 0 || cfg.BaseDelay == DefaultBaseDelay) && fc.BaseDelay > 0 { cfg.BaseDelay = fc.BaseDelay }
    if (cfg.Primary == "" || cfg.Primary == DefaultPrimary) && fc.Primary != "" { cfg.Primary = fc.Primary }
    if (cfg.Secondary == "" || cfg.Secondary == DefaultSecondary) && fc.Secondary != "" { cfg.Secondary = fc.Secondary }
    // Fallback is on by default; the file may only switch it off.
    if fc.Fallback != nil && !*fc.Fallback { cfg.DisableFallback = true }
    if cfg.UserAgent == "" && fc.UserAgent != "" { cfg.UserAgent = fc.UserAgent }

    if cfg.SearxURL == "" && fc.Searx.URL != "" { cfg.SearxURL = fc.Searx.URL }
    if cfg.SearxKey == "" && fc.Searx.Key != "" { cfg.SearxKey = fc.Searx.Key }

    if !cfg.JSON && fc.Output.JSON { cfg.JSON = true }
    if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }

    if len(fc.Providers) > 0 {
        if cfg.Providers == nil {
            cfg.Providers = map[string]search.ProviderConfig{}
        }
        for name, p := range fc.Providers {
            key := strings.ToLower(strings.TrimSpace(name))
            if _, ok := cfg.Providers[key]; !ok {
                cfg.Providers[key] = p
            }
        }
    }
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
    if cfg.Count < 0 || cfg.MaxAttempts < 0 || cfg.Timeout < 0 || cfg.BaseDelay < 0 {
        return errors.New("config: negative limits are not allowed")
    }
    if cfg.MaxAttempts > MaxAttemptsLimit {
        return fmt.Errorf("config: attempts must be at most %d", MaxAttemptsLimit)
    }
    if trim(cfg.Primary) == "" {
        return errors.New("config: primary provider is required")
    }
    if !knownProvider(cfg, cfg.Primary) {
        return fmt.Errorf("config: %w: %q", ErrUnknownProvider, cfg.Primary)
    }
    if s := trim(cfg.Secondary); s != "" && !cfg.DisableFallback {
        if strings.EqualFold(s, cfg.Primary) {
            return errors.New("config: secondary provider must differ from primary")
        }
        if strings.EqualFold(s, searxName) {
            if trim(cfg.SearxURL) == "" {
                return errors.New("config: searx.url is required when secondary is searxng (or set SEARX_URL)")
            }
        } else if !knownProvider(cfg, s) {
            return fmt.Errorf("config: %w: %q", ErrUnknownProvider, s)
        }
    }
    return nil
}

// resolveProvider returns the named profile with any file overrides applied.
// A name without a built-in profile is only valid when the overrides define a
// complete provider.
func resolveProvider(cfg Config, name string) (search.ProviderConfig, error) {
    key := strings.ToLower(trim(name))
    base, builtin := search.Profile(key)
    o, overridden := cfg.Providers[key]
    switch {
    case !builtin && !overridden:
        return search.ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
    case !builtin:
        if trim(o.URLTemplate) == "" {
            return search.ProviderConfig{}, fmt.Errorf("provider %q: urlTemplate is required", name)
        }
        base = search.ProviderConfig{Name: key, Mode: search.ModeStrategies}
    }
    p := overlayProvider(base, o)
    if cfg.UserAgent != "" {
        if p.Headers == nil {
            p.Headers = map[string]string{}
        }
        p.Headers["User-Agent"] = cfg.UserAgent
    }
    return p, nil
}

func knownProvider(cfg Config, name string) bool {
    key := strings.ToLower(trim(name))
    if _, ok := search.Profile(key); ok {
        return true
    }
    _, ok := cfg.Providers[key]
    return ok
}

// overlayProvider patches base with every non-empty field of o. Header and
// cookie maps are merged key by key.
func overlayProvider(base, o search.ProviderConfig) search.ProviderConfig {
    p := base.Clone()
    if o.Name != "" { p.Name = o.Name }
    if o.URLTemplate != "" { p.URLTemplate = o.URLTemplate }
    if o.AltURLTemplate != "" { p.AltURLTemplate = o.AltURLTemplate }
    p.Headers = mergeMap(p.Headers, o.Headers)
    p.Cookies = mergeMap(p.Cookies, o.Cookies)
    if len(o.OwnHosts) > 0 { p.OwnHosts = o.OwnHosts }
    if len(o.Redirects) > 0 { p.Redirects = o.Redirects }
    if o.Mode != "" { p.Mode = o.Mode }
    if o.UsesFallback { p.UsesFallback = true }

    f := o.Filter
    if len(f.LogoMarkers) > 0 { p.Filter.LogoMarkers = f.LogoMarkers }
    if f.AdLabel != "" { p.Filter.AdLabel = f.AdLabel }
    if f.Container != "" { p.Filter.Container = f.Container }
    if len(f.LegalMarkers) > 0 { p.Filter.LegalMarkers = f.LegalMarkers }
    if f.LegalMaxLen > 0 { p.Filter.LegalMaxLen = f.LegalMaxLen }
    if f.CarouselClass != "" { p.Filter.CarouselClass = f.CarouselClass }
    if len(f.CarouselTexts) > 0 { p.Filter.CarouselTexts = f.CarouselTexts }
    if len(f.LinkMarkers) > 0 { p.Filter.LinkMarkers = f.LinkMarkers }
    if f.LinkParentMaxLen > 0 { p.Filter.LinkParentMaxLen = f.LinkParentMaxLen }

    e := o.Extract
    if len(e.Containers) > 0 { p.Extract.Containers = e.Containers }
    if e.RedirectPrefix != "" { p.Extract.RedirectPrefix = e.RedirectPrefix }
    if len(e.Titles) > 0 { p.Extract.Titles = e.Titles }
    if len(e.Snippets) > 0 { p.Extract.Snippets = e.Snippets }
    if e.AdLabel != "" { p.Extract.AdLabel = e.AdLabel }
    if e.MinTitleLen > 0 { p.Extract.MinTitleLen = e.MinTitleLen }
    if e.SnippetMinLen > 0 { p.Extract.SnippetMinLen = e.SnippetMinLen }
    if e.SnippetMaxLen > 0 { p.Extract.SnippetMaxLen = e.SnippetMaxLen }

    l := o.Links
    if l.Link != "" { p.Links.Link = l.Link }
    if l.Block != "" { p.Links.Block = l.Block }
    if l.Snippet != "" { p.Links.Snippet = l.Snippet }
    if l.AdBlock != "" { p.Links.AdBlock = l.AdBlock }

    m := o.Markers
    if len(m.Captcha) > 0 { p.Markers.Captcha = m.Captcha }
    if len(m.Blocked) > 0 { p.Markers.Blocked = m.Blocked }
    if len(m.ScriptRequired) > 0 { p.Markers.ScriptRequired = m.ScriptRequired }
    if len(m.NoMatch) > 0 { p.Markers.NoMatch = m.NoMatch }
    return p.Clone()
}

func mergeMap(base, over map[string]string) map[string]string {
    if len(over) == 0 {
        return base
    }
    out := maps.Clone(base)
    if out == nil {
        out = make(map[string]string, len(over))
    }
    maps.Copy(out, over)
    return out
}

func trim(s string) string { return strings.TrimSpace(s) }
