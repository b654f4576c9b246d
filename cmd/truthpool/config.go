package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/truthpool/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			redacted := config.RedactedConfig(cfg)
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(redacted)
		},
	}
}
