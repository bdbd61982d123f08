package reporter

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/senbaris/tempdbcheck/internal/history"
)

// HistoryColumns are the headers of the history listing.
var HistoryColumns = []string{"Run", "Server", "Collected", "Violations"}

// RenderHistory renders stored runs newest first.
func RenderHistory(rows []history.ReportRow) string {
	if len(rows) == 0 {
		return dimStyle.Render("No stored reports.") + "\n"
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		violations := "-"
		if r.HasViolations {
			violations = strings.Join(r.Violations, ", ")
		}
		data = append(data, []string{r.RunID, r.Server, r.CollectedAt.Local().Format("2006-01-02 15:04:05"), violations})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(HistoryColumns...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row].HasViolations && col == 3 {
				return failStyle
			}
			return cellStyle
		})
	return t.Render() + "\n"
}

// WriteHistoryJSON writes history rows as an indented JSON array.
func WriteHistoryJSON(w io.Writer, rows []history.ReportRow) error {
	if rows == nil {
		rows = []history.ReportRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
