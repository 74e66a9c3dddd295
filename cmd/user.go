package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/models"
)

var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"u"},
	Short:   "Manage team members",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a team member",
	Args:  cobra.ExactArgs(1),
	RunE:  userAddRun,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List team members",
	RunE:    userListRun,
}

func init() {
	userAddCmd.Flags().String("subject", "", "Identity provider subject (unique)")
	userAddCmd.Flags().String("email", "", "Email address")
	userAddCmd.Flags().String("role", "dev", "Role: dev or manager")

	userListCmd.Flags().String("role", "", "Filter by role")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func userAddRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	subject, _ := cmd.Flags().GetString("subject")
	email, _ := cmd.Flags().GetString("email")
	roleStr, _ := cmd.Flags().GetString("role")

	role := models.UserRole(roleStr)
	if !models.ValidUserRole(role) {
		return fmt.Errorf("invalid role: %s (want dev or manager)", roleStr)
	}

	if dryRun {
		ui.DryRunMsg("Would add %s %s", role, args[0])
		return nil
	}

	user := &models.User{
		Subject: subject,
		Name:    args[0],
		Email:   email,
		Role:    role,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	ui.Success("Added %s %s (%s)", role, user.Name, shortID(user.ID))
	return nil
}

func userListRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	roleStr, _ := cmd.Flags().GetString("role")
	role := models.UserRole(roleStr)
	if roleStr != "" && !models.ValidUserRole(role) {
		return fmt.Errorf("invalid role: %s", roleStr)
	}

	users, err := s.ListUsers(ctx, role)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		ui.Info("No users found")
		return nil
	}

	table := ui.Table([]string{"NAME", "ROLE", "EMAIL", "SUBJECT", "ID"})
	for _, u := range users {
		email := u.Email
		if email == "" {
			email = "-"
		}
		subject := u.Subject
		if subject == "" {
			subject = "-"
		}
		_ = table.Append(u.Name, string(u.Role), email, subject, shortID(u.ID))
	}
	_ = table.Render()
	return nil
}
