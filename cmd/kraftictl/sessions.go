package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"krafti/internal/config"
	"krafti/internal/credential"
	"krafti/internal/db"
	"krafti/internal/reports"
	"krafti/internal/session"
	"krafti/internal/users"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect, issue and revoke login sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsIssueCommand())
	cmd.AddCommand(newSessionsRevokeCommand())
	return cmd
}

func newManager(cfg config.Config, database *gorm.DB) (*session.Manager, error) {
	codec, err := credential.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTAlgorithms)
	if err != nil {
		return nil, err
	}
	return session.NewManager(database, codec, session.Options{
		TTL:       cfg.JWTExpire.Duration(),
		MaxActive: cfg.JWTMax,
		Logger:    &log.Logger,
	}), nil
}

func newSessionsListCommand() *cobra.Command {
	var (
		userID uint
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sessions of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pool, err := db.OpenPool(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open pool: %w", err)
			}
			defer pool.Close()

			rows, err := reports.New(pool).Sessions(ctx, userID, all)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tIP\tACTIVE\tVALID TILL\tUPDATED")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
					r.ID, r.Email, r.IP, r.Active, r.ValidTill.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "User id")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive sessions")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsIssueCommand() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session credential for an active user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg config.Config, database *gorm.DB) error {
				user, err := users.NewDirectory(database).Active(ctx, userID)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %d not found or inactive", userID)
				}
				m, err := newManager(cfg, database)
				if err != nil {
					return err
				}
				token, err := m.Issue(ctx, user.ID, "kraftictl", time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "User id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsRevokeCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate every session backed by a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg config.Config, database *gorm.DB) error {
				m, err := newManager(cfg, database)
				if err != nil {
					return err
				}
				return m.Revoke(ctx, token)
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Credential to revoke")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
