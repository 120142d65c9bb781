package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"scrapecast/internal/media"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	SectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	GoodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// EntryLine formats a catalog entry for lists.
func EntryLine(e media.Entry) string {
	s := e.Title
	if e.Year > 0 {
		s += fmt.Sprintf(" (%d)", e.Year)
	}
	if e.Note != "" {
		s += " · " + e.Note
	}
	return fmt.Sprintf("%s [%s]", s, e.Kind)
}

// LinkLine formats a resolved link for lists.
func LinkLine(l media.ResolvedLink) string {
	kind := "file"
	if l.Adaptive {
		kind = "stream"
	}
	return fmt.Sprintf("%s · %s · %s", l.Name, l.Quality, kind)
}

// PrintSection writes a section heading and its entries.
func PrintSection(w io.Writer, s media.Section) {
	fmt.Fprintln(w, SectionStyle.Render(s.Name))
	for _, e := range s.Entries {
		fmt.Fprintf(w, "  %s %s\n", EntryLine(e), DimStyle.Render(e.URL))
	}
}
