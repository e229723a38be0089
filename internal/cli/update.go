package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a memory's text, importance, pin or tags",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("text", "", "Replacement text")
	cmd.Flags().IntP("importance", "i", 0, "Importance 1-5")
	cmd.Flags().Bool("pin", false, "Pin the memory")
	cmd.Flags().Bool("unpin", false, "Unpin the memory")
	cmd.Flags().StringP("tags", "t", "", "Replacement tags (comma-separated, empty string clears)")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	id := args[0]
	flags := cmd.Flags()

	settings := loadSettings()
	logger, closeLog := newLogger(settings)
	defer closeLog()

	var p store.UpdateParams
	if flags.Changed("text") {
		text, _ := flags.GetString("text")
		text = newRedactor(settings, logger).Redact(text)
		p.Text = &text
	}
	if flags.Changed("importance") {
		importance, _ := flags.GetInt("importance")
		p.Importance = &importance
	}
	pin, _ := flags.GetBool("pin")
	unpin, _ := flags.GetBool("unpin")
	switch {
	case pin && unpin:
		exitErr("update", fmt.Errorf("--pin and --unpin are mutually exclusive"))
	case pin, unpin:
		p.Pinned = &pin
	}
	if flags.Changed("tags") {
		tagsStr, _ := flags.GetString("tags")
		tags := splitTags(tagsStr)
		if tags == nil {
			tags = []string{}
		}
		p.Tags = &tags
	}

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ok, err := s.UpdateMemory(cmd.Context(), id, p)
	if err != nil {
		exitErr("update", err)
	}
	if !ok {
		exitErr("update", fmt.Errorf("memory %s not found or nothing to change", id))
	}

	if jsonOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s\n", mark(true), idStyle.Render(id))
}
