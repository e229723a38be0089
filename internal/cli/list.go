package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Long:  "List live memories for the current project and global scope, pinned and important first.",
		Run:   runList,
	}

	cmd.Flags().String("cwd", "", "Project directory used for scoping (default: current directory)")
	cmd.Flags().StringP("kind", "k", "", "Filter by kinds (comma-separated)")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated)")
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	cmd.Flags().BoolP("all", "a", false, "List every scope")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	cwd, _ := cmd.Flags().GetString("cwd")
	kindStr, _ := cmd.Flags().GetString("kind")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")

	kinds, err := model.ParseKinds(splitTags(kindStr))
	if err != nil {
		exitErr("list", err)
	}

	settings := loadSettings()
	root := ""
	if !all {
		root = projectRoot(settings, cwd)
	}

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		ProjectRoot:   root,
		Limit:         limit,
		IncludeGlobal: true,
		Kinds:         kinds,
		Tags:          splitTags(tagsStr),
	})
	if err != nil {
		exitErr("list", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		memories := make([]model.Memory, 0, len(results))
		for _, r := range results {
			memories = append(memories, r.Memory)
		}
		printJSON(out, memories)
		return
	}
	scope := root
	if scope == "" {
		scope = "all scopes"
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d memories", len(results)))+" "+dimStyle.Render(scope))
	for _, r := range results {
		printMemory(out, r.Memory)
	}
}
