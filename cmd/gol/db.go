package main

import (
	"github.com/spf13/cobra"

	"github.com/gol-logistics/gol-portal/internal/platform/db"
	"github.com/gol-logistics/gol-portal/migrations"
)

func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool, migrations.FS)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				cmd.Println("No new migrations to apply")
				return nil
			}
			for _, v := range applied {
				cmd.Printf("Applied %s\n", v)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := db.Rollback(cmd.Context(), pool, migrations.FS)
			if err != nil {
				return err
			}
			if version == "" {
				cmd.Println("Nothing to roll back")
				return nil
			}
			cmd.Printf("Rolled back %s\n", version)
			return nil
		},
	})
	return dbCmd
}
