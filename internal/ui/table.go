package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// ProjectTable renders the discovered projects as a static table with a
// size total. base is the scan root used for relative path display.
func ProjectTable(records []*project.Project, base string) string {
	if len(records) == 0 {
		return HintBarStyle().Render("  no projects found") + "\n"
	}

	nameW, sizeW := len("Project"), len("Size")
	rows := make([][3]string, 0, len(records))
	var total int64
	for _, p := range records {
		sizeStr := "-"
		if state, n, _ := p.Size(); state == project.SizeKnown {
			sizeStr = FormatSize(n)
			total += n
		} else if state == project.SizeError {
			sizeStr = "error"
		}
		row := [3]string{p.Name, sizeStr, p.RelPath(base)}
		if len(row[0]) > nameW {
			nameW = len(row[0])
		}
		if len(row[1]) > sizeW {
			sizeW = len(row[1])
		}
		rows = append(rows, row)
	}

	head := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	dim := lipgloss.NewStyle().Foreground(ColorTextDim)

	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s  %s\n",
		head.Render(pad("Project", nameW)),
		head.Render(pad("Size", sizeW)),
		head.Render("Path"))
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s  %s  %s\n",
			pad(row[0], nameW),
			pad(row[1], sizeW),
			dim.Render(row[2]))
	}
	totalStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)
	fmt.Fprintf(&b, "\n  %s %s in %d project(s)\n",
		totalStyle.Render("Total:"), FormatSize(total), len(rows))
	return b.String()
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
