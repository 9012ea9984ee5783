package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/app"
	"github.com/hyperifyio/gosearch/internal/search"
)

// Exit codes: 0 on success, 2 when the search itself failed, 1 for anything
// that kept it from running.
const (
	exitOK      = 0
	exitFailure = 1
	exitSearch  = 2
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		count       int
		attempts    int
		timeout     time.Duration
		baseDelay   time.Duration
		primary     string
		secondary   string
		fallback    bool
		userAgent   string
		searxURL    string
		searxKey    string
		configPath  string
		envFiles    string
		jsonOut     bool
		verbose     bool
		showVersion bool
	)

	flag.IntVar(&count, "n", search.DefaultCount, "Number of results to request")
	flag.IntVar(&attempts, "attempts", app.DefaultMaxAttempts, "Maximum fetch attempts per provider")
	flag.DurationVar(&timeout, "timeout", app.DefaultTimeout, "Per-request timeout")
	flag.DurationVar(&baseDelay, "backoff", app.DefaultBaseDelay, "Base delay for exponential backoff between attempts")
	flag.StringVar(&primary, "primary", app.DefaultPrimary, "Primary provider (google, duckduckgo or a provider from -config)")
	flag.StringVar(&secondary, "secondary", app.DefaultSecondary, "Secondary provider used for fallback (or searxng)")
	flag.BoolVar(&fallback, "fallback", true, "Fall back to the secondary provider when the primary fails")
	flag.StringVar(&userAgent, "ua", "", "Override the User-Agent sent to scraped providers")
	flag.StringVar(&searxURL, "searx.url", "", "SearxNG base URL (when -secondary=searxng)")
	flag.StringVar(&searxKey, "searx.key", "", "SearxNG API key (optional)")
	flag.StringVar(&configPath, "config", os.Getenv("GOSEARCH_CONFIG"), "Path to a YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load")
	flag.BoolVar(&jsonOut, "json", false, "Print the outcome as JSON")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: gosearch [flags] <query...>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(app.VersionString())
		return
	}

	if err := app.LoadEnvFiles(splitList(envFiles)...); err != nil {
		log.Error().Err(err).Msg("load env files")
		os.Exit(exitFailure)
	}

	cfg := app.Config{
		Count:           count,
		MaxAttempts:     attempts,
		Timeout:         timeout,
		BaseDelay:       baseDelay,
		Primary:         primary,
		Secondary:       secondary,
		DisableFallback: !fallback,
		UserAgent:       userAgent,
		SearxURL:        searxURL,
		SearxKey:        searxKey,
		JSON:            jsonOut,
		Verbose:         verbose,
	}
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config")
			os.Exit(exitFailure)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	// Flags given on the command line have the final say.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Count = count
		case "attempts":
			cfg.MaxAttempts = attempts
		case "timeout":
			cfg.Timeout = timeout
		case "backoff":
			cfg.BaseDelay = baseDelay
		case "primary":
			cfg.Primary = primary
		case "secondary":
			cfg.Secondary = secondary
		case "fallback":
			cfg.DisableFallback = !fallback
		case "ua":
			cfg.UserAgent = userAgent
		case "searx.url":
			cfg.SearxURL = searxURL
		case "searx.key":
			cfg.SearxKey = searxKey
		case "json":
			cfg.JSON = jsonOut
		case "v":
			cfg.Verbose = verbose
		}
	})

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := run(ctx, cfg, strings.Join(flag.Args(), " "), os.Stdout)
	code := exitCode(err)
	if code == exitFailure {
		log.Error().Err(err).Msg("run failed")
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg app.Config, query string, out io.Writer) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	resp, err := a.Search(ctx, query)
	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if werr := enc.Encode(search.NewOutcome(resp, err)); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		return err
	}
	if err != nil {
		fmt.Fprintf(out, "Search failed: %s\n", err.Error())
		return err
	}
	writeText(out, resp)
	return nil
}

func writeText(out io.Writer, resp *search.Response) {
	fmt.Fprintf(out, "%d results for %q from %s\n\n", resp.TotalCount, resp.Query, resp.Source)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
		fmt.Fprintln(out)
	}
}

// exitCode maps run's error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var se *search.Error
	if errors.As(err, &se) {
		return exitSearch
	}
	return exitFailure
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}
