package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/config"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			switch cfg.Storage.Driver {
			case config.StorageMemory, config.StorageYAML:
				fmt.Fprintf(cmd.OutOrStdout(), "Storage driver %s has no schema to migrate\n", cfg.Storage.Driver)
				return nil
			}

			// Opening a database store applies pending migrations.
			_, _, closeFn, err := localStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeFn()
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated the %s database\n", cfg.Storage.Driver)
			return nil
		},
	}
}
