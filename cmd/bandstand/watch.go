package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/bandstand/pkg/client"
	"github.com/cuemby/bandstand/pkg/events"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to a relay and print events",
	Long: `Connect as a dashboard subscriber and print every event until interrupted.

Examples:
  bandstand watch
  bandstand watch --relay relay.example.com:5000 --event bot-state --event new-log
  bandstand watch --json | jq .`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("relay", "localhost:5000", "Relay address")
	watchCmd.Flags().StringArray("event", nil, "Only print these event types (repeatable)")
	watchCmd.Flags().Bool("json", false, "Print raw event envelopes, one per line")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("relay")
	only, _ := cmd.Flags().GetStringArray("event")
	asJSON, _ := cmd.Flags().GetBool("json")

	url, err := client.EndpointURL(addr, client.SubscriberPath)
	if err != nil {
		return err
	}

	filter := make(map[events.EventType]bool, len(only))
	for _, e := range only {
		filter[events.EventType(e)] = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	return client.Watch(ctx, url, func(ev *events.Event) error {
		if len(filter) > 0 && !filter[ev.Type] {
			return nil
		}
		if asJSON {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintf(out, "%s  %-16s %s\n", time.Now().Format("15:04:05"), ev.Type, string(ev.Data))
		return err
	})
}
