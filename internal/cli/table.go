package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/roach88/fam/internal/ir"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	statementStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
	negativeStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FFAF00", Dark: "#FFAF00"})
)

// isTerminal reports whether w is a terminal. Styling is applied only then.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// style renders s with st when styled is set.
func style(st lipgloss.Style, s string, styled bool) string {
	if !styled {
		return s
	}
	return st.Render(s)
}

// renderTable writes t as aligned text: account names left-aligned, values
// right-aligned. Widths use display cells so wide account names line up.
func renderTable(w io.Writer, t ir.Table, styled bool) error {
	title := "All statements"
	if t.Statement != "" {
		title = "Statement " + string(t.Statement)
	}

	nameWidth := runewidth.StringWidth("Account")
	for _, r := range t.Rows {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Name))
	}
	cells := make([][]string, len(t.Rows))
	colWidth := make([]int, len(t.Columns))
	for j, c := range t.Columns {
		colWidth[j] = runewidth.StringWidth(c)
	}
	for i := range t.Rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			cells[i][j] = formatAmount(t.Data[i][j])
			colWidth[j] = max(colWidth[j], runewidth.StringWidth(cells[i][j]))
		}
	}

	var b strings.Builder
	b.WriteString(style(statementStyle, title, styled))
	b.WriteString("\n")

	header := runewidth.FillRight("Account", nameWidth)
	for j, c := range t.Columns {
		header += "  " + runewidth.FillLeft(c, colWidth[j])
	}
	b.WriteString(style(headerStyle, header, styled))
	b.WriteString("\n")

	for i, r := range t.Rows {
		b.WriteString(runewidth.FillRight(r.Name, nameWidth))
		for j := range t.Columns {
			v := runewidth.FillLeft(cells[i][j], colWidth[j])
			if t.Data[i][j] < 0 {
				v = style(negativeStyle, v, styled)
			}
			b.WriteString("  ")
			b.WriteString(v)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// formatAmount prints a table value in plain decimal notation, however
// large, or its marker when it is not finite.
func formatAmount(v float64) string {
	if m, ok := ir.AmountMarker(v); ok {
		return m
	}
	return decimal.NewFromFloat(v).StringFixed(0)
}
