package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"krafti/internal/config"
	"krafti/internal/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kraftictl",
		Short:         "Operator utility for the krafti course platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newSessionsCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newEventsCommand())
	return cmd
}

func loadConfig(cmd *cobra.Command) (context.Context, config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return ctx, cfg, nil
}

// withDatabase opens the ORM handle for the duration of fn.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, database *gorm.DB) error) error {
	ctx, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()
	return fn(ctx, cfg, database)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := db.Migrate(ctx, cfg.DBDSN); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert default roles and optional fixture data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, _ config.Config, database *gorm.DB) error {
				if err := db.Seed(ctx, database); err != nil {
					return fmt.Errorf("seed roles: %w", err)
				}
				if file == "" {
					return nil
				}
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := db.SeedFrom(ctx, database, f); err != nil {
					return err
				}
				log.Info().Str("file", file).Msg("fixtures loaded")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with users and courses to insert")
	return cmd
}
