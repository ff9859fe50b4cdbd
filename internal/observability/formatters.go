// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
	"github.com/jonathan/applyai/internal/usage"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for operator commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// PrintUsage outputs the user's quota position for the current period.
func (p *Printer) PrintUsage(email, tier string, r *usage.Reservation) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:     %s\n", email))
	sb.WriteString(fmt.Sprintf("Tier:     %s\n", tier))
	sb.WriteString(fmt.Sprintf("Period:   %s\n", r.Period.Format("January 2006")))
	if r.Unlimited {
		sb.WriteString(fmt.Sprintf("Used:     %d (unlimited)", r.CurrentCount))
	} else {
		sb.WriteString(fmt.Sprintf("Used:     %d of %d\n", r.CurrentCount, r.Limit))
		sb.WriteString(fmt.Sprintf("Left:     %d", r.Remaining()))
	}

	p.printBox("USAGE", sb.String())
}

// PrintApplications outputs the most recent applications with their status.
func (p *Printer) PrintApplications(total int, apps []db.Application) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total applications: %d", total))

	count := min(len(apps), maxItemsToShow)
	for i := 0; i < count; i++ {
		app := apps[i]
		sb.WriteString(fmt.Sprintf("\n\n#%d  %s at %s\n", i+1, app.JobTitle, app.CompanyName))
		sb.WriteString(fmt.Sprintf("    Generation: %-10s Stage: %s\n", app.Status, app.ApplicationStatus))
		sb.WriteString(fmt.Sprintf("    Created:    %s", app.CreatedAt.Format("2006-01-02 15:04")))
	}
	if len(apps) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n\n... and %d more", len(apps)-maxItemsToShow))
	}

	p.printBox("RECENT APPLICATIONS", sb.String())
}

// PrintCompleteness outputs the profile sections still missing.
func (p *Printer) PrintCompleteness(issues []types.CompletenessIssue) {
	if len(issues) == 0 {
		p.printBox("PROFILE", "✓ Profile complete")
		return
	}

	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, fmt.Sprintf("  • %s (%s)", issue.Label, issue.Section))
	}
	p.printBox(fmt.Sprintf("PROFILE (%d missing)", len(issues)), strings.Join(lines, "\n"))
}
