package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/progress"
	"github.com/shibinsp/ocrapillm/internal/store"
	"github.com/shibinsp/ocrapillm/internal/tui"
)

var (
	uploadPlain bool
	uploadShow  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF and wait for text extraction",
	Example: `  ocrapillm upload scan.pdf
  ocrapillm upload scan.pdf --plain --show`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		plain := uploadPlain || !isTerminal(out)
		var doc *model.Document
		if plain {
			r := &plainReporter{out: out, lastUpload: -1}
			unsub := s.Store.Subscribe(r.observe)
			doc, err = s.Upload.Run(cmd.Context(), path)
			unsub()
		} else {
			doc, err = tui.RunUpload(cmd.Context(), s.Upload, s.Store, path, filepath.Base(path), cmd.InOrStdin(), out)
		}
		if err != nil {
			return err
		}
		if plain {
			fmt.Fprintf(out, "✓ Document %s ready: %s (%d pages)\n", doc.ID, doc.Name, doc.Pages)
		}
		if uploadShow {
			fmt.Fprintln(out, s.Store.Snapshot().ExtractedText)
		}
		return nil
	},
}

// plainReporter prints upload quarters and stage changes as lines, for
// logs and pipes where the interactive view cannot render.
type plainReporter struct {
	out        io.Writer
	lastUpload int
	lastStage  string
}

func (r *plainReporter) observe(s store.State, a store.Action) {
	switch a.(type) {
	case store.SetUploadProgress:
		step := s.UploadProgress / 25 * 25
		if step > r.lastUpload {
			r.lastUpload = step
			fmt.Fprintf(r.out, "  uploading %3d%%\n", step)
		}
	case store.SetProcessing:
		if !s.IsProcessing {
			return
		}
		stage := progress.Map(s.Processing.Progress, s.Processing.Message).ActiveStage()
		if stage.Name != r.lastStage {
			r.lastStage = stage.Name
			fmt.Fprintf(r.out, "▸ %s\n", stage.Label)
		}
	case store.SetNotice:
		if s.Notice != nil && s.Notice.Level == store.NoticeWarning {
			fmt.Fprintf(r.out, "⚠ %s\n", s.Notice.Message)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadPlain, "plain", false, "print progress as plain lines instead of the interactive view")
	uploadCmd.Flags().BoolVar(&uploadShow, "show", false, "print the extracted text when done")
}
