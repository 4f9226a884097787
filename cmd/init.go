package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default schemaclone.toml",
	Long:  `Write a default schemaclone.toml in the current directory`,
	RunE:  runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing schemaclone.toml file")
}

func runInit(cmd *cobra.Command, args []string) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if initForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(config.FileName, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", config.FileName, err)
	}
	if _, err := f.WriteString(config.Template); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}

	_, _ = color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ Created %s\n", config.FileName)
	return nil
}
