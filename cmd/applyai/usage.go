package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/applications"
	"github.com/jonathan/applyai/internal/config"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/observability"
	"github.com/jonathan/applyai/internal/profiles"
	"github.com/jonathan/applyai/internal/usage"
	"github.com/spf13/cobra"
)

var (
	usageUser  string
	usageEmail string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show a user's usage, recent applications and missing profile sections",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageUser, "user", "", "User ID")
	usageCmd.Flags().StringVar(&usageEmail, "email", "", "User email (alternative to --user)")
	usageCmd.MarkFlagsMutuallyExclusive("user", "email")
	usageCmd.MarkFlagsOneRequired("user", "email")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := lookupUser(cmd, database)
	if err != nil {
		return err
	}

	// Reading usage never dispatches, so no engine is wired.
	apps := applications.NewService(database, usage.DefaultPolicies(cfg.FreeTierLimit), nil)
	summary, err := apps.Summary(ctx, user.ID)
	if err != nil {
		return err
	}
	issues, err := profiles.NewService(database).Completeness(ctx, user.ID)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintUsage(user.Email, user.Tier, summary.Usage)
	printer.PrintApplications(summary.TotalApplications, summary.Recent)
	printer.PrintCompleteness(issues)
	return nil
}

func lookupUser(cmd *cobra.Command, database *db.DB) (*db.User, error) {
	var (
		user *db.User
		err  error
	)
	if usageEmail != "" {
		user, err = database.GetUserByEmail(cmd.Context(), usageEmail)
	} else {
		id, parseErr := uuid.Parse(usageUser)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid --user: %w", parseErr)
		}
		user, err = database.GetUser(cmd.Context(), id)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}
