package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"krafti/internal/bus"
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow admin change events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newEventsWatchCommand())
	return cmd
}

func newEventsWatchCommand() *cobra.Command {
	var (
		subject string
		durable string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is not set")
			}

			events, err := bus.New(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer events.Close()

			out := cmd.OutOrStdout()
			sub, err := events.Subscribe(ctx, subject, durable, func(_ context.Context, data []byte) error {
				var ev bus.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					log.Warn().Err(err).Msg("skip malformed event")
					return nil
				}
				_, err := fmt.Fprintf(out, "%s %s %s id=%d actor=%d\n",
					ev.At.Format(time.RFC3339), ev.Entity, ev.Op, ev.ID, ev.ActorID)
				return err
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", bus.SubjectPrefix+"admin.>", "Subject filter")
	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty for an ephemeral consumer")
	return cmd
}
