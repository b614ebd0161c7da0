package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/spf13/cobra"
)

var (
	usersRole    string
	usersManager string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect the user directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, optionally by role or manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := entity.UserFilter{Role: entity.Role(usersRole), ManagerID: usersManager}
		if filter.Role != "" && !filter.Role.IsValid() {
			return fmt.Errorf("unknown role %q", usersRole)
		}

		ctx := cmd.Context()
		app, err := startContainer(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		users, err := app.Services().User.ListUsers(ctx, filter)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tMANAGER")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.ManagerID)
		}
		return tw.Flush()
	},
}

func init() {
	usersListCmd.Flags().StringVar(&usersRole, "role", "", "Employee, Manager or Admin")
	usersListCmd.Flags().StringVar(&usersManager, "manager", "", "only direct reports of this user id")
	usersCmd.AddCommand(usersListCmd)
}
