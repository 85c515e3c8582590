package bench

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	titleColor   = lipgloss.Color("#0077C8")
	successColor = lipgloss.Color("#00AA00")
	failColor    = lipgloss.Color("#C80000")
	mutedColor   = lipgloss.Color("#888888")
	valueColor   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(titleColor)

	NameStyle = lipgloss.NewStyle().
			Width(24)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(valueColor)

	SpeedupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	FailStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(failColor)

	SummaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(titleColor).
			Padding(0, 1).
			MarginTop(1)
)

// FormatHeader returns the banner line announcing an operation
func FormatHeader(d Descriptor) string {
	return TitleStyle.Render(fmt.Sprintf("[%d] %s", int(d.ID), NameStyle.Render(d.ID.String()))) +
		" " + KeyStyle.Render(d.Title)
}

// FormatResult returns the report line of one operation
func FormatResult(r Result) string {

	name := fmt.Sprintf("[%d] %s", int(r.ID), NameStyle.Render(r.ID.String()))

	if r.Status != StatusOK {
		return name + FailStyle.Render(fmt.Sprintf("FAILED at %s: %v", r.Stage, r.Err))
	}

	var b strings.Builder

	b.WriteString(name)
	b.WriteString(KeyStyle.Render("[CPU] "))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%10.3fms", r.ReferenceMs())))
	b.WriteString(KeyStyle.Render("  [OCA] "))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%10.3fms", r.AcceleratedMs())))
	b.WriteString(KeyStyle.Render("  [CPU]/[OCA] = "))

	if sp := r.Speedup(); sp.Defined() {
		b.WriteString(SpeedupStyle.Render(sp.String() + " times"))
	} else {
		b.WriteString(FailStyle.Render(sp.String()))
	}

	for _, w := range r.Warnings {
		b.WriteString("\n    ")
		b.WriteString(KeyStyle.Render("warning: " + w.Error()))
	}

	return b.String()
}

// FormatSummary returns the aggregate block printed after all operations
func FormatSummary(s Summary) string {

	lines := []string{
		KeyStyle.Render("operations: ") + ValueStyle.Render(fmt.Sprintf("%d", s.Total)),
		KeyStyle.Render("failed:     ") + ValueStyle.Render(fmt.Sprintf("%d", s.Failed)),
		KeyStyle.Render("geo mean:   ") + SpeedupStyle.Render(s.GeoMean.String()) +
			KeyStyle.Render(fmt.Sprintf(" over %d ratios", s.Defined)),
	}

	return SummaryStyle.Render(strings.Join(lines, "\n"))
}

// WriteReport writes one line per result followed by the summary
func WriteReport(w io.Writer, results []Result) error {

	for _, r := range results {
		if _, err := fmt.Fprintln(w, FormatResult(r)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, FormatSummary(Summarize(results)))
	return err
}
