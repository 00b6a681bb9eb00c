/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/internal/forms"
	"github.com/jjudge-oj/accounts/internal/logging"
	"github.com/jjudge-oj/accounts/internal/server"
)

var newUser forms.Registration

// createuserCmd registers an account through the same validation as the sign-up form.
var createuserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)
		defer func() { _ = logger.Sync() }()

		accounts, err := server.OpenAccounts(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = accounts.Close() }()

		user, err := accounts.Users.Register(cmd.Context(), newUser)
		if err != nil {
			var errs forms.Errors
			if errors.As(err, &errs) {
				for field, messages := range errs {
					for _, msg := range messages {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
					}
				}
				return errors.New("user not created")
			}
			return err
		}

		logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createuserCmd)

	createuserCmd.Flags().StringVar(&newUser.Username, "username", "", "login name")
	createuserCmd.Flags().StringVar(&newUser.Password, "password", "", "initial password")
	createuserCmd.Flags().StringVar(&newUser.FirstName, "first-name", "", "first name")
	createuserCmd.Flags().StringVar(&newUser.LastName, "last-name", "", "last name")
	createuserCmd.Flags().StringVar(&newUser.Email, "email", "", "email address")
	_ = createuserCmd.MarkFlagRequired("username")
	_ = createuserCmd.MarkFlagRequired("password")
}
