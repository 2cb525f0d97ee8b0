package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:          "shardauth",
		Short:        "Identity ledger with sharded challenge authentication",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	root.AddCommand(
		serveCommand(&configFile),
		chainCommand(&configFile),
	)
	return root
}
