package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dorcha-inc/gamelink/internal/config"
	"github.com/dorcha-inc/gamelink/internal/core"
)

// newInitCmd creates a command that writes a starter config file
func newInitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a fully populated config file with simulate mode enabled.

Without --path, the file goes to the user config location
(~/.gamelink/config.yaml).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				userPath, err := config.GetUserConfigPath()
				if err != nil {
					return err
				}
				target = userPath
			}
			if err := config.WriteDefaultConfig(target); err != nil {
				return err
			}
			core.MustFprintf(os.Stdout, "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Destination path for the config file")

	return cmd
}
