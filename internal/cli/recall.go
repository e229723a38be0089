package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [prompt]",
		Short: "Assemble a context pack for a prompt",
		Long:  "Find memories relevant to a prompt and render them as markdown grouped by kind, the same pack mem_recall returns.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().String("cwd", "", "Project directory used for scoping (default: current directory)")
	cmd.Flags().StringP("kind", "k", "", "Filter by kinds (comma-separated)")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated)")
	cmd.Flags().IntP("limit", "l", 0, "Max memories (default: max_recall setting)")
	cmd.Flags().IntP("budget", "b", 0, "Max characters of output (0 = unlimited)")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	cwd, _ := cmd.Flags().GetString("cwd")
	kindStr, _ := cmd.Flags().GetString("kind")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	budget, _ := cmd.Flags().GetInt("budget")

	kinds, err := model.ParseKinds(splitTags(kindStr))
	if err != nil {
		exitErr("recall", err)
	}

	settings := loadSettings()
	if limit <= 0 || limit > settings.MaxRecall {
		limit = settings.MaxRecall
	}

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pack, err := s.Recall(cmd.Context(), store.RecallParams{
		Prompt:        strings.Join(args, " "),
		ProjectRoot:   projectRoot(settings, cwd),
		IncludeGlobal: settings.IncludeGlobal,
		Kinds:         kinds,
		Tags:          splitTags(tagsStr),
		Limit:         limit,
		Budget:        budget,
	})
	if err != nil {
		exitErr("recall", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, pack)
		return
	}
	fmt.Fprintln(out, pack.Text)
}
