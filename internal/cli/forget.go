package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "forget <id>",
		Aliases: []string{"rm"},
		Short:   "Soft-delete a memory",
		Args:    cobra.ExactArgs(1),
		Run:     runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	id := args[0]

	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ok, err := s.SoftDelete(cmd.Context(), id)
	if err != nil {
		exitErr("forget", err)
	}
	if !ok {
		exitErr("forget", fmt.Errorf("memory %s not found", id))
	}

	if jsonOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", mark(true), idStyle.Render(id))
}
