package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"planadmin/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "database %s migrated\n", a.dbType)
		return nil
	},
}

var (
	createUserPassword  string
	createUserSuperuser bool
)

var createUserCmd = &cobra.Command{
	Use:   "createuser USERNAME",
	Short: "Create an admin user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if createUserPassword == "" {
			return errors.New("--password is required")
		}
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		user, err := a.accounts.RegisterUser(cmd.Context(), args[0], createUserPassword, createUserSuperuser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant USERNAME PERMISSION...",
	Short: "Grant app.codename permissions to a user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		user, err := a.accounts.UserByUsername(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("find user %s: %w", args[0], err)
		}
		for _, perm := range args[1:] {
			if err := a.accounts.GrantPermission(cmd.Context(), user.ID, perm); err != nil {
				return fmt.Errorf("grant %s: %w", perm, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "granted %d permission(s) to %s\n", len(args)-1, user.Username)
		return nil
	},
}

var planName string

var setPlanDateCmd = &cobra.Command{
	Use:   "setplandate YYYY-MM-DD",
	Short: "Set the current date of the plan",
	Long: `Set the current date of the plan. New users get report preferences
starting at this date.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		plan, err := a.accounts.SetCurrentDate(cmd.Context(), planName, date)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s current date %s\n", plan.Name, plan.CurrentDate.Format("2006-01-02"))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		version := config.DefaultVersion
		if cfg, err := loadConfig(); err == nil && cfg.BasicConfig.Version != "" {
			version = cfg.BasicConfig.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "planadmin v%s\n", version)
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserPassword, "password", "", "password of the new user")
	createUserCmd.Flags().BoolVar(&createUserSuperuser, "superuser", false, "grant every permission")
	setPlanDateCmd.Flags().StringVar(&planName, "name", "", "plan name (kept when empty)")
}
