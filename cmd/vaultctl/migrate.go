package main

import (
	"github.com/spf13/cobra"

	"yieldvault/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(*cobra.Command, []string) error {
			if err := connectDB(); err != nil {
				return err
			}
			defer config.CloseDB()
			return config.ExecuteMigrations(dir)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(*cobra.Command, []string) error {
			if err := connectDB(); err != nil {
				return err
			}
			defer config.CloseDB()
			return config.RollbackMigration(dir, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func connectDB() error {
	app, err := config.Load()
	if err != nil {
		return err
	}
	return config.InitDB(app.Database)
}
