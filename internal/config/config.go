package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shibinsp/ocrapillm/internal/utils"
)

const dirName = ".ocrapillm"

// Global configuration structure.
type Global struct {
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	UploadTimeoutSec int `mapstructure:"upload_timeout_sec" yaml:"upload_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryDelayMs     int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`

	// Task polling
	PollIntervalMs     int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PollMaxAttempts    int `mapstructure:"poll_max_attempts" yaml:"poll_max_attempts"`
	PollMaxFetchErrors int `mapstructure:"poll_max_fetch_errors" yaml:"poll_max_fetch_errors"`

	// Upload validation
	MaxUploadMB int  `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	StrictPDF   bool `mapstructure:"strict_pdf" yaml:"strict_pdf"`

	AutoSaveEnabled  bool `mapstructure:"autosave_enabled" yaml:"autosave_enabled"`
	AutoSaveDelaySec int  `mapstructure:"autosave_delay_sec" yaml:"autosave_delay_sec"`

	// Local state: chat transcript cache
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	ChatCache     string `mapstructure:"chat_cache" yaml:"chat_cache"`
	RedisURL      string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// Keys lists every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var defaults = map[string]any{
	"api_base_url":          "http://localhost:8000",
	"http_timeout_sec":      30,
	"upload_timeout_sec":    120,
	"retry_max_attempts":    3,
	"retry_delay_ms":        1000,
	"poll_interval_ms":      2000,
	"poll_max_attempts":     150,
	"poll_max_fetch_errors": 3,
	"max_upload_mb":         50,
	"strict_pdf":            false,
	"autosave_enabled":      true,
	"autosave_delay_sec":    30,
	"data_dir":              "",
	"chat_cache":            "file",
	"redis_url":             "localhost:6379",
	"redis_password":        "",
	"redis_db":              0,
	"log_level":             "info",
	"log_format":            "console",
	"metrics_addr":          "",
}

// Default returns the built-in configuration.
func Default() *Global {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Dir returns ~/.ocrapillm.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.ocrapillm/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
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
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("OCRAPILLM")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// missing is fine, unparseable is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.DataDir = dir
	}
	c.DataDir = utils.ExpandHome(c.DataDir)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the client cannot run with.
func (c *Global) Validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api_base_url must start with http:// or https://, got %q", c.APIBaseURL)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll_max_attempts must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	switch c.ChatCache {
	case "file", "redis":
	default:
		return fmt.Errorf("chat_cache must be file or redis, got %q", c.ChatCache)
	}
	return nil
}

// Set assigns a single key from its string form, as used by `config set`.
func (c *Global) Set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s expects an integer: %w", key, err)
		}
		return n, nil
	}
	atob := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects true or false: %w", key, err)
		}
		return b, nil
	}
	var err error
	switch key {
	case "api_base_url":
		c.APIBaseURL = strings.TrimRight(value, "/")
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "upload_timeout_sec":
		c.UploadTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_delay_ms":
		c.RetryDelayMs, err = atoi()
	case "poll_interval_ms":
		c.PollIntervalMs, err = atoi()
	case "poll_max_attempts":
		c.PollMaxAttempts, err = atoi()
	case "poll_max_fetch_errors":
		c.PollMaxFetchErrors, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "strict_pdf":
		c.StrictPDF, err = atob()
	case "autosave_enabled":
		c.AutoSaveEnabled, err = atob()
	case "autosave_delay_sec":
		c.AutoSaveDelaySec, err = atoi()
	case "data_dir":
		c.DataDir = value
	case "chat_cache":
		c.ChatCache = value
	case "redis_url":
		c.RedisURL = value
	case "redis_password":
		c.RedisPassword = value
	case "redis_db":
		c.RedisDB, err = atoi()
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "metrics_addr":
		c.MetricsAddr = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err != nil {
		return err
	}
	return c.Validate()
}

func (c *Global) HTTPTimeout() time.Duration   { return time.Duration(c.HTTPTimeoutSec) * time.Second }
func (c *Global) UploadTimeout() time.Duration { return time.Duration(c.UploadTimeoutSec) * time.Second }
func (c *Global) RetryDelay() time.Duration    { return time.Duration(c.RetryDelayMs) * time.Millisecond }
func (c *Global) PollInterval() time.Duration  { return time.Duration(c.PollIntervalMs) * time.Millisecond }
func (c *Global) AutoSaveDelay() time.Duration {
	return time.Duration(c.AutoSaveDelaySec) * time.Second
}
func (c *Global) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }
