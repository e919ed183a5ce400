package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"faceattend/internal/auth"
	"faceattend/internal/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token",
	Long: `Signs an HS256 token with ADMIN_JWT_SIGNING_KEY carrying the admin role.
The token unlocks the /admin routes of the API.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to ADMIN_TOKEN_TTL)")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.ParseAdminToken()
	if err != nil {
		return err
	}
	if !cfg.AdminAuthEnabled() {
		return errors.New("ADMIN_JWT_SIGNING_KEY is not set")
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.AdminTokenTTL
	}
	tok, err := auth.IssueAdmin(tokenSubject, cfg.JWTIssuer, cfg.AdminSigningKey, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok.Value)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
	return nil
}
