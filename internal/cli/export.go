package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories",
		Long:  "Export memories as markdown, JSON or YAML, oldest first. JSON and YAML exports can be read back with import.",
		Run:   runExport,
	}

	cmd.Flags().String("as", "markdown", "Export format: markdown, json or yaml")
	cmd.Flags().String("cwd", "", "Export one project (default: every scope)")
	cmd.Flags().Bool("no-global", false, "Exclude global memories")
	cmd.Flags().Bool("deleted", false, "Include deleted memories")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	as, _ := cmd.Flags().GetString("as")
	cwd, _ := cmd.Flags().GetString("cwd")
	noGlobal, _ := cmd.Flags().GetBool("no-global")
	deleted, _ := cmd.Flags().GetBool("deleted")

	settings := loadSettings()
	root := ""
	if cwd != "" {
		root = projectRoot(settings, cwd)
	}

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := s.ExportAll(cmd.Context(), store.ExportParams{
		ProjectRoot:    root,
		IncludeGlobal:  !noGlobal,
		IncludeDeleted: deleted,
	})
	if err != nil {
		exitErr("export", err)
	}

	if err := writeExport(cmd.OutOrStdout(), as, memories); err != nil {
		exitErr("export", err)
	}
}

func writeExport(w io.Writer, format string, memories []model.Memory) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(memories)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(memories); err != nil {
			return err
		}
		return enc.Close()
	case "markdown", "md":
		var b strings.Builder
		b.WriteString("# Memories\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s (id:%s)\n", m.Kind, m.Text, m.ID)
		}
		_, err := io.WriteString(w, b.String())
		return err
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
