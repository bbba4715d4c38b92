package main

import (
	"github.com/spf13/cobra"
	"instaprofiler/pkg/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables and indexes if they do not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// openApp migrates on open
		a, err := openApp(cmd.Context(), nil, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ui.PrintSuccess(cmd.OutOrStdout(), "Schema is up to date ("+a.store.Dialect().String()+": "+a.cfg.Database.DSN+")")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}
