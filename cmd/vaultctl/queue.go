package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yieldvault/pkg/config"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Maintain the event queue",
	}

	purge := &cobra.Command{
		Use:   "purge [queue]",
		Short: "Drop every pending message of a queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := config.Load()
			if err != nil {
				return err
			}
			name := app.EventsQueue
			if len(args) == 1 {
				name = args[0]
			}
			if err := config.InitRabbitMQ(app.RabbitMQ); err != nil {
				return err
			}
			defer config.RabbitMQ.Close()

			n, err := config.PurgeQueue(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d messages from %s\n", n, name)
			return nil
		},
	}

	cmd.AddCommand(purge)
	return cmd
}
