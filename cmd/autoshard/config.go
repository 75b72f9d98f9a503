package main

import (
	"fmt"

	"github.com/jaredmtdev/autoshard/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConfigCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "config <path>",
		Short: "Write a YAML config file with every key set",
		Long: `Writes the default configuration, or the file given with --from merged over
the defaults, to <path>. The result is a starting point for write --config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(from)
			if err != nil {
				return err
			}
			if err := cfg.Save(args[0]); err != nil {
				return err
			}
			logger.Info("saved config", zap.String("path", args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Existing config file to complete with defaults")
	return cmd
}
