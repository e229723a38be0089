package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/codex-mem/internal/model"
)

var (
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	pinStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	okMark      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	failMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
)

// printMemory writes one memory as a single styled line.
func printMemory(w io.Writer, m model.Memory) {
	var b strings.Builder
	b.WriteString(idStyle.Render("[" + m.ID + "]"))
	b.WriteString(" ")
	b.WriteString(kindStyle.Render("(" + string(m.Kind) + ")"))
	if m.Pinned {
		b.WriteString(" " + pinStyle.Render("pinned"))
	}
	b.WriteString(" " + m.Text)

	meta := []string{fmt.Sprintf("importance %d", m.Importance)}
	if len(m.Tags) > 0 {
		meta = append(meta, "tags "+strings.Join(m.Tags, ","))
	}
	if m.ProjectRoot == nil {
		meta = append(meta, "global")
	}
	if m.Deleted {
		meta = append(meta, "deleted")
	}
	b.WriteString(" " + dimStyle.Render(strings.Join(meta, " · ")))
	fmt.Fprintln(w, b.String())
}

func mark(ok bool) string {
	if ok {
		return okMark
	}
	return failMark
}
