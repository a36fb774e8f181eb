package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wisefido-shift/internal/events"
)

func newEventsCmd() *cobra.Command {
	var count int64
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the most recent shift lifecycle events from the Redis stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.redis == nil {
				return errors.New("redis is disabled or unreachable")
			}
			evs, err := events.Recent(ctx, a.redis, a.cfg.Events.Stream, count)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ev := range evs {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("encode event: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&count, "count", 50, "maximum number of events")
	return cmd
}
