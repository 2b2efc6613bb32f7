package main

import (
	"fmt"

	"github.com/dangerclosesec/assessly/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var userProvisionCmd = &cobra.Command{
	Use:   "provision [email]",
	Short: "Create a user with a role",
	Long: `Create a user. ADMIN users take no organization; MANAGER and EMPLOYEE
users require --org and are bound to it in the same transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")
		org, _ := cmd.Flags().GetString("org")
		team, _ := cmd.Flags().GetString("team")

		db, err := openDatabase()
		if err != nil {
			return err
		}

		user, membership, err := newAdminService(db).ProvisionUser(ctx, service.ProvisionUserInput{
			Name:             name,
			Email:            args[0],
			Password:         password,
			Role:             role,
			OrganizationCode: org,
			TeamID:           team,
		})
		if err != nil {
			return err
		}

		fmt.Printf("user %s created with role %s\n", user.ID, user.Role)
		if membership != nil {
			fmt.Printf("bound to organization %s\n", membership.OrganizationID)
		}
		return nil
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "role [user-id] [role]",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}

		// The operator is not a user; uuid.Nil never matches a real id.
		previous, err := newAdminService(db).ChangeRole(ctx, uuid.Nil, userID, service.ChangeRoleInput{Role: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("role changed from %s to %s\n", previous, args[1])
		return nil
	},
}

func init() {
	userProvisionCmd.Flags().StringP("name", "n", "", "Display name")
	userProvisionCmd.Flags().StringP("password", "p", "", "Initial password")
	userProvisionCmd.Flags().StringP("role", "r", "EMPLOYEE", "Role: ADMIN, MANAGER or EMPLOYEE")
	userProvisionCmd.Flags().String("org", "", "Organization code")
	userProvisionCmd.Flags().String("team", "", "Team id inside the organization")
	_ = userProvisionCmd.MarkFlagRequired("name")
	_ = userProvisionCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userProvisionCmd)
	userCmd.AddCommand(userRoleCmd)
	rootCmd.AddCommand(userCmd)
}
