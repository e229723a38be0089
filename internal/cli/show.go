package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a memory and the turn it came from",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	id := args[0]

	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := s.Get(cmd.Context(), id)
	if err != nil {
		exitErr("show", err)
	}
	turn, err := s.SourceTurn(cmd.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		exitErr("source turn", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, map[string]any{"memory": m, "source_turn": turn})
		return
	}

	printMemory(out, *m)
	fmt.Fprintln(out, dimStyle.Render("updated "+m.Timestamp.Format("2006-01-02 15:04:05 MST")))
	if turn == nil {
		fmt.Fprintln(out, dimStyle.Render("added by hand"))
		return
	}
	fmt.Fprintln(out, headerStyle.Render("Source turn"), dimStyle.Render(turn.ID))
	fmt.Fprintf(out, "  thread %s · turn %s · %s\n", turn.Turn.ThreadID, turn.Turn.TurnID, turn.Turn.Cwd)
	for _, msg := range turn.Turn.InputMessages {
		fmt.Fprintf(out, "  %s %s\n", kindStyle.Render(msg.Role+":"), msg.Content)
	}
	fmt.Fprintf(out, "  %s %s\n", kindStyle.Render("assistant:"), turn.Turn.AssistantMessage.Content)
}
