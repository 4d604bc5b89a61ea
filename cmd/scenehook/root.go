package main

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/scenehook/internal/config"
)

// Version is set via -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "scenehook",
		Short:         "Live object discovery and synchronization for host scenes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: built-in defaults)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newLayoutCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}
