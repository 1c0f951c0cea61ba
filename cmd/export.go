package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/utils"
)

var (
	exportFormat string
	exportOut    string
)

const exportConcurrency = 4

var exportCmd = &cobra.Command{
	Use:   "export <id>...",
	Short: "Download documents as txt or docx",
	Example: `  ocrapillm export 3f2a --format docx
  ocrapillm export 3f2a 9b1c --out ./exports`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch exportFormat {
		case "txt", "docx":
		default:
			return fmt.Errorf("invalid --format %q (use txt or docx)", exportFormat)
		}
		if err := utils.EnsureDir(exportOut); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		exports := make([]*api.Export, len(args))
		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(exportConcurrency)
		for i, id := range args {
			i, id := i, id
			g.Go(func() error {
				e, err := s.Client.Export(gctx, id, exportFormat)
				if err != nil {
					return fmt.Errorf("export %s: %w", id, err)
				}
				exports[i] = e
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Written in argument order so colliding names get stable suffixes.
		for i, e := range exports {
			path := utils.UniquePath(filepath.Join(exportOut, utils.SanitizeFilename(e.Filename)))
			if err := utils.SafeWriteFile(path, e.Data); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %s to %s (%s)\n", args[i], path, utils.HumanSize(int64(len(e.Data))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "txt", "export format: txt or docx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")
}
