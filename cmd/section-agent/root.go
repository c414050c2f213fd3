package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/infracollect/agentkit"
	"github.com/infracollect/agentkit/cache"
	"github.com/infracollect/agentkit/trace"
)

var (
	flagSectionURLs        []string
	flagNewlineReplacement string
	flagConfig             string
	flagCacheDir           string
	flagCacheName          string
	flagCacheInterval      time.Duration
	flagNoCache            bool
	flagVcrTrace           string
	flagDebug              bool
	flagVerbose            bool
)

var rootCmd = &cobra.Command{
	Use:   "section-agent",
	Short: "Fetch monitoring sections from HTTP endpoints",
	Long: `section-agent fetches named sections from HTTP endpoints and emits
them in agent section format (<<<name>>> blocks) on stdout.

Results can be cached on disk for a configurable interval, so frequent
invocations do not hammer slow endpoints. With --debug, cache problems
become fatal instead of degrading to a live fetch, and payloads are
pretty-printed for inspection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAgent,
}

func init() {
	rootCmd.Flags().StringArrayVar(&flagSectionURLs, "section-url", nil,
		"pair of section name and url separated by a comma (repeatable)")
	rootCmd.Flags().StringVar(&flagNewlineReplacement, "newline-replacement", agentkit.DefaultNewlineReplacement,
		"string substituted for newlines inside section payloads")
	rootCmd.Flags().StringVar(&flagConfig, "config", "",
		"path to a YAML configuration file (default $"+agentkit.ConfigEnvVar+")")
	rootCmd.Flags().StringVar(&flagCacheDir, "cache-dir", "",
		"directory for cached section data")
	rootCmd.Flags().StringVar(&flagCacheName, "cache-name", "",
		"cache file name (default derived from the configured sections)")
	rootCmd.Flags().DurationVar(&flagCacheInterval, "cache-interval", 0,
		"how long cached section data stays valid (0 disables caching)")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false,
		"fetch live data even when a valid cache entry exists")
	rootCmd.Flags().StringVar(&flagVcrTrace, "vcrtrace", "",
		"record/replay HTTP traffic against this trace file (must be under $HOME/tmp/debug)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false,
		"pretty-print payloads and make cache problems fatal")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false,
		"enable verbose logging")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// No sections configured: show usage, exit cleanly.
	if len(cfg.Sections) == 0 {
		return cmd.Help()
	}

	level := hclog.Info
	if flagVerbose {
		level = hclog.Debug
	}
	hlog := hclog.New(&hclog.LoggerOptions{
		Name:   "section-agent",
		Level:  level,
		Output: os.Stderr,
	})
	logger := agentkit.NewHclogLogger(hlog).WithValues("run", uuid.NewString())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	collectorOpts := []agentkit.Option{
		agentkit.WithLogger(logger),
		agentkit.WithNewlineReplacement(cfg.NewlineReplacement),
	}

	if flagVcrTrace != "" {
		rec, err := trace.New(flagVcrTrace)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Stop(); err != nil {
				logger.Error(err, "failed to finalize trace file", "file", rec.Path())
			}
		}()
		logger.Info("tracing HTTP traffic", "file", rec.Path(), "recording", rec.Recording())
		collectorOpts = append(collectorOpts, agentkit.WithHTTPClient(rec.Client()))
	}

	collector, err := agentkit.NewCollector(collectorOpts...)
	if err != nil {
		return err
	}

	content, err := collect(ctx, collector, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Debug {
		return agentkit.WriteDebug(os.Stdout, cfg.Sections, content)
	}
	return agentkit.WriteSections(os.Stdout, cfg.Sections, content)
}

// collect fetches the configured sections, through the on-disk result cache
// when caching is enabled.
func collect(ctx context.Context, collector *agentkit.Collector, cfg *agentkit.Config, logger logr.Logger) (map[string][]string, error) {
	if cfg.Cache.IntervalSeconds <= 0 {
		return collector.Collect(ctx, cfg.Sections)
	}

	// The cache name encodes the configured sections, so differently
	// configured agents never share an entry.
	name := cfg.Cache.Name
	if name == "" {
		name = "sections-" + sectionsHash(cfg.Sections)
	}

	// The store performs no locking itself: one cache file, one writer is the
	// caller's responsibility. Take an exclusive run lock keyed like the
	// cache entry so concurrent invocations cannot interleave writes.
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Cache.Dir, name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another agent instance holds %s", lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Error(err, "failed to release run lock", "file", lock.Path())
		}
	}()

	configured := cfg.Sections
	src := cache.SourceFuncs[[]agentkit.Section, map[string][]string]{
		Window: time.Duration(cfg.Cache.IntervalSeconds) * time.Second,
		ValidFn: func(args []agentkit.Section) bool {
			return sectionsEqual(args, configured)
		},
		FetchFn: func(ctx context.Context, args []agentkit.Section) (map[string][]string, error) {
			return collector.Collect(ctx, args)
		},
	}

	storeOpts := []cache.Option{cache.WithLogger(logger)}
	if cfg.Debug {
		storeOpts = append(storeOpts, cache.WithStrict())
	}
	store := cache.New[[]agentkit.Section, map[string][]string](cfg.Cache.Dir, name, src, storeOpts...)

	var getOpts []cache.GetOption
	if flagNoCache {
		getOpts = append(getOpts, cache.SkipCache())
	}
	return store.Get(ctx, cfg.Sections, getOpts...)
}

// loadConfig merges the configuration file (if any) with command line flags;
// flags win.
func loadConfig(cmd *cobra.Command) (*agentkit.Config, error) {
	var (
		cfg *agentkit.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = agentkit.LoadConfig(flagConfig)
	} else {
		cfg, err = agentkit.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}

	for _, pair := range flagSectionURLs {
		name, url, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid --section-url %q, want name,url", pair)
		}
		cfg.Sections = append(cfg.Sections, agentkit.Section{Name: name, URL: url})
	}

	if cmd.Flags().Changed("newline-replacement") {
		cfg.NewlineReplacement = flagNewlineReplacement
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.Cache.Dir = flagCacheDir
	}
	if cmd.Flags().Changed("cache-name") {
		cfg.Cache.Name = flagCacheName
	}
	if cmd.Flags().Changed("cache-interval") {
		cfg.Cache.IntervalSeconds = int(flagCacheInterval.Seconds())
	}
	if flagDebug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sectionsHash(sections []agentkit.Section) string {
	h := sha256.New()
	for _, s := range sections {
		fmt.Fprintf(h, "%s,%s\n", s.Name, s.URL)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func sectionsEqual(a, b []agentkit.Section) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
