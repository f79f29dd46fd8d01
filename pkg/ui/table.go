package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accentCyan   = lipgloss.Color("#00FFFF")
	accentGreen  = lipgloss.Color("#39FF14")
	accentYellow = lipgloss.Color("#FFFF00")
	dimGrey      = lipgloss.Color("#B0B0B0")
)

// Row is one labelled line of a table
type Row struct {
	Label string
	Value string
}

type tableStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	border lipgloss.Style
}

func currentStyles() tableStyles {
	if !ColorEnabled() {
		plain := lipgloss.NewStyle()
		return tableStyles{
			title:  plain,
			header: plain.Padding(0, 1),
			label:  plain.Padding(0, 1),
			value:  plain.Padding(0, 1),
			border: plain,
		}
	}
	return tableStyles{
		title:  lipgloss.NewStyle().Foreground(accentGreen).Bold(true),
		header: lipgloss.NewStyle().Foreground(accentCyan).Bold(true).Padding(0, 1),
		label:  lipgloss.NewStyle().Foreground(accentCyan).Padding(0, 1),
		value:  lipgloss.NewStyle().Foreground(accentYellow).Padding(0, 1),
		border: lipgloss.NewStyle().Foreground(dimGrey),
	}
}

// RenderTable draws rows as a two column table under title
func RenderTable(title string, rows []Row) string {
	st := currentStyles()

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Label, r.Value}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.border).
		Headers("FIELD", "VALUE").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return st.header
			case col == 0:
				return st.label
			default:
				return st.value
			}
		})

	if title == "" {
		return t.Render()
	}
	return st.title.Render(title) + "\n" + t.Render()
}
