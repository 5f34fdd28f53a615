package cmd

import (
	"github.com/spf13/cobra"

	"crewlink/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Connect migrates on open
		database, err := db.Connect(cmd.Context(), v.GetString("db.driver"), v.GetString("db.dsn"))
		if err != nil {
			return err
		}
		return database.Close()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
