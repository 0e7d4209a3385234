package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/rfm-dashboard/internal/config"
	"github.com/KaramelBytes/rfm-dashboard/internal/dashboard"
	"github.com/KaramelBytes/rfm-dashboard/internal/dataset"
	"github.com/KaramelBytes/rfm-dashboard/internal/logging"
	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
	"github.com/KaramelBytes/rfm-dashboard/internal/profile"
)

var (
	// Global flags
	cfgFile     string
	debug       bool
	profileName string
	// HTTP flag (overrides config if set)
	flagHTTPTimeoutSec int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:          "rfmdash",
	Short:        "rfmdash: RFM donor segmentation dashboard",
	Long:         `rfmdash loads a precomputed RFM segmentation dataset and serves a single-page dashboard of segment counts, channel revenue and donation-level breakdowns.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.rfmdash/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "dashboard profile name (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "dataset fetch timeout in seconds (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("profile") && profileName != "" {
		cfg.Profile = profileName
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	logger = logging.New(cfg.AppEnv, level)
}

func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}
	return cfg.Validate()
}

// loadProfile resolves the configured profile and applies dataset overrides.
func loadProfile() (*profile.Profile, error) {
	p, err := profile.Load(cfg.Profile, cfg.ProfilesDir)
	if err != nil {
		return nil, err
	}
	p.Override(cfg.DonorsURL, cfg.SubsegmentsURL)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// newService wires loader, cache and profile into a dashboard service. m may
// be nil.
func newService(m *metrics.Metrics) (*dashboard.Service, error) {
	if err := requireConfig(); err != nil {
		return nil, err
	}
	p, err := loadProfile()
	if err != nil {
		return nil, err
	}
	loader := dataset.NewLoader(
		dataset.NewFetcher(cfg.HTTPTimeout()),
		dataset.WithMetrics(m),
		dataset.WithLogger(logger),
	)
	src := dataset.NewCachedLoader(loader, cfg.CacheTTL(), m)
	dcfg := dashboard.Config{
		Profile:     p,
		Options:     displayOptions(),
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
	}
	if debug {
		fmt.Fprintf(os.Stderr, "[debug] profile=%s donors=%s subsegments=%s cache_ttl=%s\n", p.Name, p.DonorsURL, p.SubsegmentURL, cfg.CacheTTL())
	}
	return dashboard.NewService(src, dcfg, m, logger), nil
}
