package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easeaico/roleplay-relay/internal/config"
	"github.com/easeaico/roleplay-relay/internal/seed"
	"github.com/easeaico/roleplay-relay/internal/storage"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Create the tables and load characters and memories from a YAML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RowStore != config.RowStorePostgres {
			return fmt.Errorf("import needs ROW_STORE=%s", config.RowStorePostgres)
		}

		f, err := seed.LoadFile(importFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		withVectors := cfg.VectorEnabled() && cfg.VectorBackend == config.VectorBackendPgvector
		if err := store.AutoMigrate(ctx, withVectors); err != nil {
			return err
		}

		res, err := seed.Import(ctx, f, store.Characters, store.Memories)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "personagens: %d, memorias: %d\n", res.Characters, res.Memories)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "seed.yaml", "YAML seed file")
}
