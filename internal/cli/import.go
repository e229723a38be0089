package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/codex-mem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from JSON or YAML",
		Long:  "Import memories from a file or stdin. Expects the format produced by export --as json or --as yaml. Near-duplicates merge into existing memories.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	cmd.Flags().String("as", "", "Input format: json or yaml (default: from the file extension, else json)")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	as, _ := cmd.Flags().GetString("as")

	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if as == "" {
			as = strings.TrimPrefix(filepath.Ext(args[0]), ".")
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		exitErr("read input", err)
	}

	memories, err := decodeImport(data, as)
	if err != nil {
		exitErr("parse input", err)
	}
	for i, m := range memories {
		if _, err := model.ParseKind(string(m.Kind)); err != nil {
			exitErr("parse input", fmt.Errorf("entry %d: %w", i, err))
		}
	}

	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), memories)
	if err != nil {
		exitErr("import", err)
	}

	if jsonOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d memories\n", mark(true), imported)
}

func decodeImport(data []byte, format string) ([]model.Memory, error) {
	var memories []model.Memory
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &memories); err != nil {
			return nil, err
		}
	case "", "json":
		if err := json.Unmarshal(data, &memories); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown import format %q", format)
	}
	return memories, nil
}
