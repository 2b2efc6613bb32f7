package main

import (
	"fmt"

	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/dangerclosesec/assessly/internal/service"

	"github.com/spf13/cobra"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var orgCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an organization",
	Long:  `Create an organization. Without --code a random organization code is generated.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		code, _ := cmd.Flags().GetString("code")

		db, err := openDatabase()
		if err != nil {
			return err
		}

		org, err := newAdminService(db).CreateOrganization(ctx, service.CreateOrganizationInput{Name: args[0], Code: code})
		if err != nil {
			return err
		}
		fmt.Printf("organization %s created with code %s\n", org.ID, org.Code)
		return nil
	},
}

var orgTeamCmd = &cobra.Command{
	Use:   "team [organization-code] [team-name]",
	Short: "Create a team inside an organization",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, err := openDatabase()
		if err != nil {
			return err
		}

		org, err := repository.NewOrganizationRepository(db).FindByCode(ctx, args[0])
		if err != nil {
			return err
		}
		team, err := newAdminService(db).CreateTeam(ctx, org.ID, service.CreateTeamInput{Name: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("team %s created in %s\n", team.ID, org.Code)
		return nil
	},
}

func init() {
	orgCreateCmd.Flags().StringP("code", "c", "", "Organization code (generated when empty)")
	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgTeamCmd)
	rootCmd.AddCommand(orgCmd)
}
