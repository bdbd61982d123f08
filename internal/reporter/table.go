package reporter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/senbaris/tempdbcheck/internal/model"
)

var (
	accent  = lipgloss.Color("#2563EB") // blue
	dim     = lipgloss.Color("#6B7280") // muted gray
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(danger)
	infoStyle   = cellStyle.Foreground(dim)
	passStyle   = lipgloss.NewStyle().Foreground(success)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(warning)
	borderStyle = lipgloss.NewStyle().Foreground(dim)
)

// Column headers of the result table.
var Columns = []string{"Rule", "Recommended", "CurrentSetting", "Notes"}

// RenderTable renders a report as a bordered table with a short header and
// a warning footer when any rule deviates from its recommendation.
func RenderTable(report *model.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tempdb configuration: " + report.Server))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("version %s  |  %d logical processors  |  run %s",
		report.Version, report.LogicalProcessors, report.RunID)))
	b.WriteString("\n")

	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{r.Rule, r.RecommendedString(), r.CurrentSetting.String(), r.Notes})
	}

	results := report.Results
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(results) {
				return cellStyle
			}
			switch {
			case results[row].IsViolation():
				return failStyle
			case results[row].Recommended == nil:
				return infoStyle
			default:
				return cellStyle
			}
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(Summary(report))
	b.WriteString("\n")
	return b.String()
}

// Summary returns the one-line verdict printed under the table.
func Summary(report *model.Report) string {
	violations := report.Violations()
	if len(violations) == 0 {
		return passStyle.Render("No tempdb best practice violations found.")
	}
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, v.Rule)
	}
	return warnStyle.Render(fmt.Sprintf("WARNING: %d rule(s) deviate from best practice: %s",
		len(violations), strings.Join(names, ", ")))
}
