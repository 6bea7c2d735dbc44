package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/bandstand/pkg/client"
	"github.com/cuemby/bandstand/pkg/state"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// pushTimeout bounds one-shot producer pushes
const pushTimeout = 10 * time.Second

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "Act as the producer for testing dashboards",
	Long: `Send producer events to a running relay without a bot.

Each invocation connects as the producer, sends one event and disconnects.
A connected bot is superseded for the duration and reconnects on its own.`,
}

var producerStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Send a bot state update",
	Long: `Send an update-bot-state patch built from --set flags and/or a YAML file.

Examples:
  # Set individual fields (values are parsed as YAML scalars)
  bandstand producer state --set status=online --set volume=65 --set isPlaying=true

  # Send a patch file
  bandstand producer state -f patch.yaml

  patch.yaml:
    status: online
    currentSong:
      title: Never Gonna Give You Up
      artist: Rick Astley
      duration: 213
    queue: []`,
	Args: cobra.NoArgs,
	RunE: runProducerState,
}

var producerLogCmd = &cobra.Command{
	Use:   "log MESSAGE...",
	Short: "Send a log entry",
	Long: `Send a new-log entry. The relay stamps the receive time.

Examples:
  bandstand producer log Joined voice channel
  bandstand producer log --level warning Rate limited by upstream`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProducerLog,
}

func init() {
	producerCmd.PersistentFlags().String("relay", "localhost:5000", "Relay address")

	producerStateCmd.Flags().StringArray("set", nil, "Field to set as key=value (repeatable)")
	producerStateCmd.Flags().StringP("file", "f", "", "YAML file with the patch")

	producerLogCmd.Flags().String("level", "INFO", "Log level: DEBUG, INFO, WARNING, ERROR, CRITICAL")

	producerCmd.AddCommand(producerStateCmd)
	producerCmd.AddCommand(producerLogCmd)
	rootCmd.AddCommand(producerCmd)
}

func producerURL(cmd *cobra.Command) (string, error) {
	addr, _ := cmd.Flags().GetString("relay")
	return client.EndpointURL(addr, client.ProducerPath)
}

func runProducerState(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	sets, _ := cmd.Flags().GetStringArray("set")

	patch := make(types.Patch)
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if err := mergeYAML(patch, data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filename, err)
		}
	}
	for _, kv := range sets {
		if err := mergeSet(patch, kv); err != nil {
			return err
		}
	}
	if len(patch) == 0 {
		return fmt.Errorf("nothing to send: use --set or --file")
	}

	for _, key := range patch.Keys() {
		if !state.IsKnownField(key) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %q is not a bot state field and will be ignored\n", key)
		}
	}

	url, err := producerURL(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), pushTimeout)
	defer cancel()

	if err := client.PushState(ctx, url, patch); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %d field(s)\n", len(patch))
	return nil
}

func runProducerLog(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("level")

	url, err := producerURL(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), pushTimeout)
	defer cancel()

	entry := types.LogEntry{
		Level:   types.ParseLogLevel(level),
		Message: strings.Join(args, " "),
	}
	if err := client.PushLog(ctx, url, entry); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %s log\n", entry.Level)
	return nil
}

// mergeYAML decodes a YAML mapping into patch, converting each value to JSON
func mergeYAML(patch types.Patch, data []byte) error {
	var fields map[string]interface{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		patch[k] = raw
	}
	return nil
}

// mergeSet parses one key=value flag. The value is read as a YAML scalar,
// so "65" is a number, "true" a boolean and "null" clears a field.
func mergeSet(patch types.Patch, kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid --set %q: expected key=value", kv)
	}

	var v interface{}
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return fmt.Errorf("invalid --set %q: %w", kv, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("invalid --set %q: %w", kv, err)
	}
	patch[key] = raw
	return nil
}
