package cmd

import (
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/db"
	"crewlink/internal/models"
	"crewlink/internal/repositories"
)

// Profiles normally arrive from the crew directory sync. This command seeds one by hand
// for local runs.
var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Create or replace the cached display profile of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Connect(cmd.Context(), v.GetString("db.driver"), v.GetString("db.dsn"))
		if err != nil {
			return err
		}
		defer database.Close()

		flags := cmd.Flags()
		record := models.ProfileRecord{UserID: args[0]}
		record.DisplayName, _ = flags.GetString("name")
		record.AvatarURL, _ = flags.GetString("avatar")
		record.DepartmentName, _ = flags.GetString("department")
		record.RoleName, _ = flags.GetString("role")
		record.ShipName, _ = flags.GetString("ship")
		record.CruiseLineName, _ = flags.GetString("cruise-line")

		if err := repositories.NewProfileRepo(database).UpsertProfile(cmd.Context(), record); err != nil {
			return err
		}
		jww.INFO.Printf("profile stored user=%s name=%q", record.UserID, record.DisplayName)
		return nil
	},
}

func init() {
	profileCmd.Flags().String("name", "", "Display name")
	profileCmd.Flags().String("avatar", "", "Avatar URL")
	profileCmd.Flags().String("department", "", "Department name")
	profileCmd.Flags().String("role", "", "Role name")
	profileCmd.Flags().String("ship", "", "Ship name")
	profileCmd.Flags().String("cruise-line", "", "Cruise line name")
	rootCmd.AddCommand(profileCmd)
}
