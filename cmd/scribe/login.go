package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribepad/scribe/internal/auth"
	"github.com/scribepad/scribe/internal/config"
	"github.com/scribepad/scribe/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store a session token",
	Long: `Store the session token obtained from the scribepad web app.

The token is kept in the data directory and used by the daemon and the
one-shot commands until 'scribe logout'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		token := args[0]
		holder := auth.NewTokenHolder(token)
		uid, err := holder.UserID()
		if err != nil {
			return fmt.Errorf("token does not look like a session token: %w", err)
		}

		if err := saveToken(cfg, token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		fmt.Printf("%s logged in as user %d\n", ui.RenderPass("✓"), uid)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	Long: `Remove the stored session token.

Queued work is preserved and delivered on the next login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if err := clearToken(cfg); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}

		fmt.Println("Logged out")
		return nil
	},
}
