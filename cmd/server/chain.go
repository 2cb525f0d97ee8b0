package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shardauth/internal/ledger"
	"shardauth/internal/platform/config"
	"shardauth/internal/platform/logger"
)

func chainCommand(configFile *string) *cobra.Command {
	var includeKeys bool
	c := &cobra.Command{
		Use:   "chain",
		Short: "Prints the persisted identity ledger",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			if cfg.Storage.Directory == "" {
				return errors.New("storage.dir is not set; the ledger is not persisted")
			}
			backend, err := ledger.OpenBadger(cfg.Storage.Directory, logger.New(cfg.Logging))
			if err != nil {
				return err
			}
			defer backend.Close()

			blocks, err := backend.Load(c.Context())
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			if !includeKeys {
				for i := range blocks {
					blocks[i] = blocks[i].Public()
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(blocks)
		},
	}
	c.Flags().BoolVar(&includeKeys, "include-keys", false, "print owner private keys")
	return c
}
