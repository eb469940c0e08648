package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"effectlint/internal/consistency"
	"effectlint/internal/fixes"
	"effectlint/internal/rules"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	fileStyle    = lipgloss.NewStyle().Underline(true)
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func severityStyle(severity string) lipgloss.Style {
	switch SeverityRank(severity) {
	case 1:
		return errorStyle
	case 2:
		return warningStyle
	default:
		return infoStyle
	}
}

// RenderFindings writes rows grouped by file, followed by a summary line.
func RenderFindings(w io.Writer, rows []Row, sum Summary) error {
	var b strings.Builder

	byFile := make(map[string][]Row)
	var files []string
	for _, r := range rows {
		if _, ok := byFile[r.File]; !ok {
			files = append(files, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}

	for _, f := range files {
		b.WriteString(fileStyle.Render(f))
		b.WriteString("\n")
		for _, r := range byFile[f] {
			fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
				dimStyle.Render(fmt.Sprintf("%d:%d", r.Line, r.Column)),
				severityStyle(r.Severity).Render(fmt.Sprintf("%-7s", r.Severity)),
				r.Message,
				ruleStyle.Render(fmt.Sprintf("%s (%s)", r.RuleID, FormatFloat(r.Confidence))),
			)
		}
		b.WriteString("\n")
	}

	if sum.Total() == 0 {
		b.WriteString(okStyle.Render(fmt.Sprintf("No findings in %d file(s)", sum.Files)))
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%d finding(s) in %d file(s)", sum.Total(), sum.Files)))
		fmt.Fprintf(&b, "  %s %s %s",
			errorStyle.Render(fmt.Sprintf("%d error", sum.Errors)),
			warningStyle.Render(fmt.Sprintf("%d warning", sum.Warnings)),
			infoStyle.Render(fmt.Sprintf("%d info", sum.Infos)),
		)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderIssues writes consistency issues with their participating files.
func RenderIssues(w io.Writer, issues []consistency.Issue) error {
	var b strings.Builder
	if len(issues) == 0 {
		b.WriteString(okStyle.Render("No consistency issues"))
		b.WriteString("\n")
	}
	for _, is := range issues {
		fmt.Fprintf(&b, "%s  %s\n", warningStyle.Render(is.ID), is.Description)
		for _, f := range is.Files {
			fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("-"), f)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRules writes one line per rule descriptor.
func RenderRules(w io.Writer, ds []rules.Descriptor) error {
	var b strings.Builder
	for _, d := range ds {
		fmt.Fprintf(&b, "%-34s %s  %s\n",
			headerStyle.Render(d.ID),
			severityStyle(string(d.Severity)).Render(fmt.Sprintf("%-7s", d.Severity)),
			d.Summary,
		)
		if len(d.FixIDs) > 0 {
			fmt.Fprintf(&b, "%-34s %s\n", "", dimStyle.Render("fixes: "+strings.Join(d.FixIDs, ", ")))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderChanges writes each change as a unified diff.
func RenderChanges(w io.Writer, changes []fixes.Change) error {
	if len(changes) == 0 {
		_, err := io.WriteString(w, okStyle.Render("No changes")+"\n")
		return err
	}
	for _, c := range changes {
		diff, err := c.UnifiedDiff()
		if err != nil {
			return fmt.Errorf("diff %s: %w", c.Filename, err)
		}
		header := fmt.Sprintf("%s %s", fileStyle.Render(c.Filename), dimStyle.Render("["+strings.Join(c.FixIDs, ", ")+"]"))
		if _, err := fmt.Fprintf(w, "%s\n%s\n", header, diff); err != nil {
			return err
		}
	}
	return nil
}
