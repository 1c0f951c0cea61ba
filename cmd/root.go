package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/app"
	cfgpkg "github.com/shibinsp/ocrapillm/internal/config"
	"github.com/shibinsp/ocrapillm/internal/logging"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// HTTP/retry flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryDelayMs     int
	flagBaseURL          string

	// Loaded configuration
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "ocrapillm",
	Short: "OCR document client: upload PDFs, edit extracted text, chat about it",
	Long: `ocrapillm talks to an OCR + LLM document service. It uploads PDFs,
follows their processing, edits and saves the extracted text, and chats
with the language model about one document or all of them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ocrapillm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts for reads on network failure (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryDelayMs, "retry-delay-ms", 0, "delay between read retries in ms (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "service base URL (overrides config)")
}

func loadConfig() {
	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal here: init and config set can still repair the file.
		cfgErr = err
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-delay-ms") && flagRetryDelayMs > 0 {
		cfg.RetryDelayMs = flagRetryDelayMs
	}
	if f.Changed("base-url") && flagBaseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(flagBaseURL, "/")
		if err := cfg.Validate(); err != nil {
			cfg, cfgErr = nil, err
		}
	}
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("load config: %w", cfgErr)
		}
		return nil, fmt.Errorf("no configuration loaded")
	}
	return cfg, nil
}

func newLogger(c *cfgpkg.Global) *zerolog.Logger {
	level := c.LogLevel
	if debug {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: c.LogFormat})
}

// newSession wires the client components for the current command.
func newSession(ctx context.Context) (*app.Session, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, c, app.Options{Logger: newLogger(c)})
}
