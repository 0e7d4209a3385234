package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/rfm-dashboard/internal/utils"
)

// Global configuration structure.
type Global struct {
	Profile     string `mapstructure:"profile" yaml:"profile"`
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir"`
	// Dataset locations; when set they override the profile's.
	DonorsURL      string `mapstructure:"donors_url" yaml:"donors_url,omitempty"`
	SubsegmentsURL string `mapstructure:"subsegments_url" yaml:"subsegments_url,omitempty"`

	// Server
	ListenAddr           string `mapstructure:"listen_addr" yaml:"listen_addr"`
	AppEnv               string `mapstructure:"app_env" yaml:"app_env"`
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeoutSec int    `mapstructure:"read_header_timeout_sec" yaml:"read_header_timeout_sec"`
	ShutdownTimeoutSec   int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`

	// Loading
	HTTPTimeoutSec int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	CacheTTLSec    int `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`

	// Display
	UnclassifiedBucket bool `mapstructure:"unclassified_bucket" yaml:"unclassified_bucket"`
	FloatPrecision     int  `mapstructure:"float_precision" yaml:"float_precision"`
	ChartWidth         int  `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight        int  `mapstructure:"chart_height" yaml:"chart_height"`
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"profile", "profiles_dir", "donors_url", "subsegments_url",
	"listen_addr", "app_env", "log_level", "read_header_timeout_sec", "shutdown_timeout_sec",
	"http_timeout_sec", "cache_ttl_sec",
	"unclassified_bucket", "float_precision", "chart_width", "chart_height",
}

// HTTPTimeout returns the dataset fetch timeout.
func (c *Global) HTTPTimeout() time.Duration { return seconds(c.HTTPTimeoutSec) }

// CacheTTL returns the dataset cache lifetime; zero disables caching.
func (c *Global) CacheTTL() time.Duration { return seconds(c.CacheTTLSec) }

// ReadHeaderTimeout returns the server's header read timeout.
func (c *Global) ReadHeaderTimeout() time.Duration { return seconds(c.ReadHeaderTimeoutSec) }

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Global) ShutdownTimeout() time.Duration { return seconds(c.ShutdownTimeoutSec) }

func seconds(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Second
}

// Validate rejects values no component can use.
func (c *Global) Validate() error {
	switch {
	case c.FloatPrecision < 0 || c.FloatPrecision > 10:
		return fmt.Errorf("float_precision must be between 0 and 10, got %d", c.FloatPrecision)
	case c.ChartWidth < 200 || c.ChartHeight < 150:
		return fmt.Errorf("chart size %dx%d is too small (min 200x150)", c.ChartWidth, c.ChartHeight)
	case c.HTTPTimeoutSec <= 0:
		return fmt.Errorf("http_timeout_sec must be positive, got %d", c.HTTPTimeoutSec)
	case c.CacheTTLSec < 0:
		return fmt.Errorf("cache_ttl_sec must not be negative, got %d", c.CacheTTLSec)
	}
	return nil
}

// DefaultDir returns ~/.rfmdash.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".rfmdash"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.rfmdash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("RFMDASH")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("profile", "donations")
	v.SetDefault("profiles_dir", "")
	v.SetDefault("donors_url", "")
	v.SetDefault("subsegments_url", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "")
	v.SetDefault("read_header_timeout_sec", 5)
	v.SetDefault("shutdown_timeout_sec", 10)
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("cache_ttl_sec", 0)
	v.SetDefault("unclassified_bucket", true)
	v.SetDefault("float_precision", 2)
	v.SetDefault("chart_width", 1600)
	v.SetDefault("chart_height", 800)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// A missing file is fine; a malformed one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve profiles_dir default: ~/.rfmdash/profiles
	if c.ProfilesDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		c.ProfilesDir = filepath.Join(dir, "profiles")
	}
	return &c, nil
}

// Set assigns a string value to key, parsing it for the field's type.
func (c *Global) Set(key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid non-negative int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "profile":
		c.Profile = val
	case "profiles_dir":
		c.ProfilesDir = val
	case "donors_url":
		c.DonorsURL = val
	case "subsegments_url":
		c.SubsegmentsURL = val
	case "listen_addr":
		c.ListenAddr = val
	case "app_env":
		c.AppEnv = val
	case "log_level":
		c.LogLevel = val
	case "read_header_timeout_sec":
		c.ReadHeaderTimeoutSec, err = atoi()
	case "shutdown_timeout_sec":
		c.ShutdownTimeoutSec, err = atoi()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "cache_ttl_sec":
		c.CacheTTLSec, err = atoi()
	case "float_precision":
		c.FloatPrecision, err = atoi()
	case "chart_width":
		c.ChartWidth, err = atoi()
	case "chart_height":
		c.ChartHeight, err = atoi()
	case "unclassified_bucket":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for unclassified_bucket: %v", val)
		}
		c.UnclassifiedBucket = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

// Get renders the value of key for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "profile":
		return c.Profile, nil
	case "profiles_dir":
		return c.ProfilesDir, nil
	case "donors_url":
		return c.DonorsURL, nil
	case "subsegments_url":
		return c.SubsegmentsURL, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "app_env":
		return c.AppEnv, nil
	case "log_level":
		return c.LogLevel, nil
	case "read_header_timeout_sec":
		return strconv.Itoa(c.ReadHeaderTimeoutSec), nil
	case "shutdown_timeout_sec":
		return strconv.Itoa(c.ShutdownTimeoutSec), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "cache_ttl_sec":
		return strconv.Itoa(c.CacheTTLSec), nil
	case "unclassified_bucket":
		return strconv.FormatBool(c.UnclassifiedBucket), nil
	case "float_precision":
		return strconv.Itoa(c.FloatPrecision), nil
	case "chart_width":
		return strconv.Itoa(c.ChartWidth), nil
	case "chart_height":
		return strconv.Itoa(c.ChartHeight), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}
