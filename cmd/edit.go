package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/autosave"
	"github.com/shibinsp/ocrapillm/internal/metrics"
	"github.com/shibinsp/ocrapillm/internal/store"
	"github.com/shibinsp/ocrapillm/internal/utils"
)

var (
	editFile       string
	editNoAutoSave bool
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a document's text in a local file with auto-save",
	Long: `edit writes the document's text to a working file (unless it already
exists) and watches it. Every change to the file becomes an edit; edits
are saved to the server after the configured auto-save delay and once
more on exit if anything is still unsaved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Open(ctx, id); err != nil {
			return err
		}

		path := editFile
		if path == "" {
			path = utils.SanitizeFilename(id) + ".txt"
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := utils.SafeWriteFile(path, []byte(s.Store.Snapshot().ExtractedText)); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		out := cmd.OutOrStdout()
		if editNoAutoSave {
			s.Store.Dispatch(store.SetAutoSave{Enabled: false})
		}
		unsub := s.Store.Subscribe(noticePrinter(out))
		defer unsub()
		saver := s.AutoSaver()
		defer saver.Close()

		if addr := s.Config.MetricsAddr; addr != "" {
			stop := serveMetrics(addr, s.Log)
			defer stop()
		}

		w := autosave.NewFileWatcher(path, s.Store, s.Log)
		w.Sync()
		fmt.Fprintf(out, "Editing %s in %s. Save the file to record changes; Ctrl+C to finish.\n", id, path)
		if err := w.Run(ctx); err != nil {
			return err
		}

		// ctx is done; pick up a write the watcher may not have delivered,
		// then flush with a fresh deadline.
		w.Sync()
		if !s.Store.Snapshot().Modified() {
			fmt.Fprintln(out, "✓ No unsaved changes")
			return nil
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), s.Config.HTTPTimeout())
		defer cancel()
		if err := saver.SaveNow(flushCtx); err != nil {
			return fmt.Errorf("final save: %w", err)
		}
		return nil
	},
}

// noticePrinter echoes save results and store notices.
func noticePrinter(out io.Writer) func(store.State, store.Action) {
	return func(s store.State, a store.Action) {
		switch a.(type) {
		case store.SetTextSaved:
			fmt.Fprintf(out, "✓ Saved at %s\n", time.Now().Format("15:04:05"))
		case store.SetNotice:
			if s.Notice == nil {
				return
			}
			switch s.Notice.Level {
			case store.NoticeError:
				fmt.Fprintf(out, "✗ %s\n", s.Notice.Message)
			case store.NoticeWarning:
				fmt.Fprintf(out, "⚠ %s\n", s.Notice.Message)
			default:
				fmt.Fprintf(out, "✓ %s\n", s.Notice.Message)
			}
		}
	}
}

// serveMetrics exposes Prometheus metrics on addr until the returned stop
// function is called.
func serveMetrics(addr string, log *zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "working file (default <id>.txt)")
	editCmd.Flags().BoolVar(&editNoAutoSave, "no-autosave", false, "only save once on exit")
}
