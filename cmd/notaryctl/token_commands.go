package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"media-notary-backend/internal/common/middleware"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue trigger tokens",
	}

	var (
		subject string
		ttl     time.Duration
	)
	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a bearer token accepted by POST /mint-jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.TriggerSecret == "" {
				return errors.New("TRIGGER_SECRET is not set")
			}
			token, err := middleware.SignTriggerToken(cfg.Auth.TriggerSecret, subject, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	signCmd.Flags().StringVar(&subject, "subject", "upload-pipeline", "Token subject")
	signCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	tokenCmd.AddCommand(signCmd)
	return tokenCmd
}
