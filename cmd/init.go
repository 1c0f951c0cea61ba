package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/shibinsp/ocrapillm/internal/config"
	"github.com/shibinsp/ocrapillm/internal/utils"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		// Refuse to overwrite an existing config.
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat config: %w", err)
		}

		c := cfgpkg.Default()
		if flagBaseURL != "" {
			if err := c.Set("api_base_url", flagBaseURL); err != nil {
				return err
			}
		}
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		if err := cfgpkg.Save(c, path); err != nil {
			return err
		}
		dataDir := c.DataDir
		if dataDir == "" {
			if dataDir, err = cfgpkg.Dir(); err != nil {
				return err
			}
		}
		if err := utils.EnsureDir(utils.ExpandHome(dataDir)); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Config initialized: %s\n", path)
		return nil
	},
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := cfgpkg.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
}
