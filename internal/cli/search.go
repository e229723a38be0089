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
		Use:   "search [query]",
		Short: "Search memories by keyword",
		Long:  "Full-text search over memories in the current project plus global memories. Every term must match unless --any is set.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("cwd", "", "Project directory used for scoping (default: current directory)")
	cmd.Flags().StringP("kind", "k", "", "Filter by kinds (comma-separated)")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated, all must match)")
	cmd.Flags().IntP("limit", "l", store.DefaultSearchLimit, "Max results")
	cmd.Flags().Bool("any", false, "Match any term instead of all")
	cmd.Flags().Bool("no-global", false, "Exclude global memories")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	cwd, _ := cmd.Flags().GetString("cwd")
	kindStr, _ := cmd.Flags().GetString("kind")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	matchAny, _ := cmd.Flags().GetBool("any")
	noGlobal, _ := cmd.Flags().GetBool("no-global")
	query := strings.Join(args, " ")

	kinds, err := model.ParseKinds(splitTags(kindStr))
	if err != nil {
		exitErr("search", err)
	}

	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:         query,
		ProjectRoot:   projectRoot(settings, cwd),
		Limit:         limit,
		IncludeGlobal: !noGlobal,
		Kinds:         kinds,
		Tags:          splitTags(tagsStr),
		MatchAny:      matchAny,
	})
	if err != nil {
		exitErr("search", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		if results == nil {
			results = []store.SearchResult{}
		}
		printJSON(out, results)
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(out, dimStyle.Render("no memories found"))
		return
	}
	for _, r := range results {
		printMemory(out, r.Memory)
	}
}
