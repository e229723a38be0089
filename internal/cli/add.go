package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory",
		Long:  "Store a memory. Text can be a positional arg or piped via stdin. Near-duplicates of the same kind and scope are merged.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("kind", "k", "fact", "Kind: preference, fact, decision, todo, pitfall, workflow, reference")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().IntP("importance", "i", model.DefaultImportance, "Importance 1-5")
	cmd.Flags().String("cwd", "", "Project directory used for scoping (default: current directory)")
	cmd.Flags().BoolP("global", "g", false, "Store without a project scope")
	cmd.Flags().Bool("pin", false, "Pin the memory")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	kindStr, _ := cmd.Flags().GetString("kind")
	tagsStr, _ := cmd.Flags().GetString("tags")
	importance, _ := cmd.Flags().GetInt("importance")
	cwd, _ := cmd.Flags().GetString("cwd")
	global, _ := cmd.Flags().GetBool("global")
	pin, _ := cmd.Flags().GetBool("pin")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else if stat, err := os.Stdin.Stat(); err == nil {
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	if strings.TrimSpace(text) == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	kind, err := model.ParseKind(kindStr)
	if err != nil {
		exitErr("add", err)
	}

	settings := loadSettings()
	root := ""
	if !global {
		root = projectRoot(settings, cwd)
	}

	logger, closeLog := newLogger(settings)
	defer closeLog()
	redactor := newRedactor(settings, logger)

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.AddMemory(cmd.Context(), model.Candidate{
		Kind:       kind,
		Text:       redactor.Redact(strings.TrimSpace(text)),
		Importance: importance,
		Tags:       splitTags(tagsStr),
	}, root, "")
	if err != nil {
		exitErr("add", err)
	}
	if pin {
		pinned := true
		if _, err := s.UpdateMemory(cmd.Context(), id, store.UpdateParams{Pinned: &pinned}); err != nil {
			exitErr("pin", err)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, map[string]any{"id": id, "project_root": model.ScopePtr(root)})
		return
	}
	fmt.Fprintf(out, "Added memory %s\n", idStyle.Render(id))
}
