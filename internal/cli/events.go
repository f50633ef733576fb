package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/neurodash/internal/sse"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events [code]",
		Short: "Stream SSE events from a duel",
		Long: `Connect to the duel's SSE endpoint and stream events in real-time.

The stream opens with the current duel record and then carries one "duel"
event with the full record after every write.

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := cfg.ResolveRoom(args)
			if err != nil {
				return err
			}
			return streamEvents(cmd, code, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func streamEvents(cmd *cobra.Command, code string, jsonOutput bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	body, err := client.Stream(ctx, roomPath(code, "/events"))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if !jsonOutput {
		_, _ = fmt.Fprintf(w, "Connected to duel %s\n", code)
	}

	reader := sse.NewReader(body)
	for {
		event, err := reader.Next()
		if err != nil {
			// Context cancellation is expected
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				if !jsonOutput {
					_, _ = fmt.Fprintln(w, "Disconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}
		printEvent(w, event, jsonOutput)
	}
}

func printEvent(w io.Writer, event sse.Event, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := SSEEvent{
			Time:  now,
			Event: event.Name,
			Data:  json.RawMessage(event.Data),
		}
		if !json.Valid(evt.Data) {
			evt.Data, _ = json.Marshal(event.Data)
		}
		jsonData, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(w, string(jsonData))
	} else {
		timestamp := now.Format("2006-01-02 15:04:05")
		// Truncate data if it's too long for display
		displayData := event.Data
		if len(displayData) > 100 {
			displayData = displayData[:100] + "..."
		}
		// Remove newlines for cleaner display
		displayData = strings.ReplaceAll(displayData, "\n", " ")
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, event.Name, displayData)
	}
}
