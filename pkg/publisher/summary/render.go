package summary

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorMuted).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
)

// Table renders rows as a bordered table. Status columns are only shown
// for skipped and failed packs.
func Table(rows []PackResult, withStatus bool) string {
	headers := []string{"#", "Pack ID", "Pack Display Name", "Latest Version", "Aggregated Pack Versions"}
	if withStatus {
		headers = append(headers, "Status")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for i, r := range rows {
		cells := []string{strconv.Itoa(i + 1), r.Name, r.DisplayName, r.Version, r.AggregationString}
		if withStatus {
			cells = append(cells, r.StatusLabel)
		}
		t.Row(cells...)
	}
	return t.Render()
}

// Render writes the run summary to w.
func Render(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Packs Upload Summary: %d packs", s.Total()))); err != nil {
		return err
	}
	sections := []struct {
		title      string
		style      lipgloss.Style
		rows       []PackResult
		withStatus bool
	}{
		{"Successful uploaded packs", successStyle, s.Successful, false},
		{"Skipped packs", warningStyle, s.Skipped, true},
		{"Failed packs", errorStyle, s.Failed, true},
	}
	for _, sec := range sections {
		if len(sec.rows) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", sec.style.Render(fmt.Sprintf("%s: %d", sec.title, len(sec.rows))), Table(sec.rows, sec.withStatus)); err != nil {
			return err
		}
	}
	if len(s.UpdatedPrivate) > 0 {
		if _, err := fmt.Fprintf(w, "%s %v\n", titleStyle.Render("Updated private packs:"), s.UpdatedPrivate); err != nil {
			return err
		}
	}
	return nil
}
