package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"presence/internal/queue"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Broadcast a cache reset to running servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.RefreshBackend != "redis" {
			return fmt.Errorf("refresh backend %q cannot reach other processes; use redis", app.RefreshBackend)
		}
		bus := queue.NewRedisPubSub(app.RedisAddr, app.RefreshChannel)
		defer bus.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		msg := queue.NewMessage(queue.TypeCacheReset, []byte("presencectl"))
		if err := bus.Publish(ctx, msg); err != nil {
			return fail("publish", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s published on %s\n", msg.ID, app.RefreshChannel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
