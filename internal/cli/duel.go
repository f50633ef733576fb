package cli

import (
	"bufio"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/duel"
)

func newDuelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duel",
		Short: "Duel commands",
	}

	cmd.AddCommand(newDuelCreateCmd())
	cmd.AddCommand(newDuelJoinCmd())
	cmd.AddCommand(newDuelGetCmd())
	cmd.AddCommand(newDuelTransitionCmd("ready", "Mark yourself ready", "/ready"))
	cmd.AddCommand(newDuelTransitionCmd("start", "Start the round once both are ready", "/start"))
	cmd.AddCommand(newDuelReactCmd())
	cmd.AddCommand(newDuelTransitionCmd("false-start", "Report a click before the go signal", "/false-start"))
	cmd.AddCommand(newDuelTransitionCmd("finish", "Resolve the round once both have reported", "/finish"))
	cmd.AddCommand(newDuelRematchCmd())
	cmd.AddCommand(newDuelBotCmd())
	cmd.AddCommand(newDuelPlayCmd())

	return cmd
}

func newDuelCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Open a new room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndRemember(cmd, "/api/v1/duels", nil)
		},
	}
}

func newDuelJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Take the open seat in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndRemember(cmd, "/api/v1/duels/join", map[string]string{"room_code": args[0]})
		},
	}
}

func newDuelGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [code]",
		Short: "Show a duel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := cfg.ResolveRoom(args)
			if err != nil {
				return err
			}

			var result response.Duel
			if err := client.Get(cmd.Context(), roomPath(code, ""), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

// newDuelTransitionCmd builds a command for a transition that takes no body
func newDuelTransitionCmd(use, short, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [code]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postToRoom(cmd, args, suffix, nil)
		},
	}
}

func newDuelReactCmd() *cobra.Command {
	var ms int64

	cmd := &cobra.Command{
		Use:   "react [code]",
		Short: "Report your reaction time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postToRoom(cmd, args, "/reaction", map[string]int64{"reaction_ms": ms})
		},
	}

	cmd.Flags().Int64Var(&ms, "ms", 0, "Reaction time in milliseconds (required)")
	_ = cmd.MarkFlagRequired("ms")

	return cmd
}

func newDuelRematchCmd() *cobra.Command {
	var round int

	cmd := &cobra.Command{
		Use:   "rematch [code]",
		Short: "Reset a finished round for another go",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postToRoom(cmd, args, "/rematch", map[string]int{"round": round})
		},
	}

	cmd.Flags().IntVar(&round, "round", 0, "Round that finished (default: the current round)")

	return cmd
}

func newDuelBotCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "bot [code]",
		Short: "Seat a bot opponent in your room",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := cfg.ResolveRoom(args)
			if err != nil {
				return err
			}

			var result response.Player
			req := map[string]string{"strategy": strategy}
			if err := client.Post(cmd.Context(), roomPath(code, "/bot"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Bot strategy (default: random)")

	return cmd
}

func newDuelPlayCmd() *cobra.Command {
	var join string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a duel interactively",
		Long: `Create a room (or join one with --join) and play in the terminal.

Type r and Enter to ready up, press Enter when GO appears, m for a rematch
and q to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, join)
		},
	}

	cmd.Flags().StringVar(&join, "join", "", "Room code to join instead of creating a room")

	return cmd
}

func runPlay(cmd *cobra.Command, join string) error {
	ctx := cmd.Context()
	out := output(cmd)

	var me response.Player
	if err := client.Get(ctx, "/api/v1/players/me", &me); err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	clk := clock.New()
	backend := NewRemoteBackend(client, model.PlayerID(me.ID), clk, logger)
	session := duel.NewSession(backend, clk, random.New(), duel.DefaultSessionConfig(), logger)
	defer session.Leave()

	var err error
	if join != "" {
		_, err = session.Join(ctx, join)
	} else {
		_, err = session.Create(ctx)
	}
	if err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var shown duel.State
	for {
		select {
		case <-ctx.Done():
			return nil

		case st := <-session.Updates():
			if st.Phase != shown.Phase || st.Outcome != shown.Outcome || st.Err != nil {
				out.Print(st)
			}
			shown = st

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			var err error
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q":
				return nil
			case "r":
				err = session.Ready(ctx)
			case "m":
				err = session.Rematch(ctx)
			default:
				err = session.Click(ctx)
			}
			if err != nil {
				out.PrintMessage("Error: " + err.Error())
			}
		}
	}
}

// postToRoom posts a transition to the resolved room
func postToRoom(cmd *cobra.Command, args []string, suffix string, body any) error {
	code, err := cfg.ResolveRoom(args)
	if err != nil {
		return err
	}
	_, err = postDuel(cmd, roomPath(code, suffix), body)
	return err
}

// postAndRemember opens or joins a room and makes it the default
func postAndRemember(cmd *cobra.Command, path string, body any) error {
	d, err := postDuel(cmd, path, body)
	if err != nil {
		return err
	}
	return cfg.RememberRoom(d.RoomCode)
}

// postDuel posts a duel transition and prints the resulting record
func postDuel(cmd *cobra.Command, path string, body any) (*response.Duel, error) {
	var result response.Duel

	stale, err := client.Do(cmd.Context(), http.MethodPost, path, body, &result)
	if err != nil {
		return nil, err
	}

	out := output(cmd)
	if stale && cfg.Output != "json" {
		out.PrintMessage("No change: the duel had already moved on")
	}
	out.Print(result)
	return &result, nil
}

func roomPath(code, suffix string) string {
	return "/api/v1/duels/" + url.PathEscape(code) + suffix
}
