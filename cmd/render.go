package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"markalloc/internal/errs"
	"markalloc/internal/usecase/allocation"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	badStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("(no rows)"))
		return errs.Wrap(err, "write table")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.Render())
	return errs.Wrap(err, "write table")
}

func renderAllocations(w io.Writer, items []allocation.AllocationItem) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(item.ID, 10),
			strconv.FormatUint(item.SubjectID, 10),
			strconv.Itoa(item.Rank),
			item.ExaminerName,
			item.Region,
			item.Gender,
			strconv.FormatFloat(item.Score, 'f', 2, 64),
			string(item.Status),
		})
	}
	return renderTable(w, []string{"ID", "SUBJECT", "RANK", "EXAMINER", "REGION", "GENDER", "SCORE", "STATUS"}, rows)
}

func renderCompliance(w io.Writer, report allocation.ComplianceReport) error {
	verdict := okStyle.Render("COMPLIANT")
	if !report.Compliant {
		verdict = badStyle.Render("NON-COMPLIANT")
	}
	if _, err := fmt.Fprintf(w, "cycle=%d subject=%d approved=%d %s\n", report.CycleID, report.SubjectID, report.ApprovedCount, verdict); err != nil {
		return errs.Wrap(err, "write compliance header")
	}
	if len(report.Violations) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		rows = append(rows, []string{string(v.QuotaType), v.QuotaKey, string(v.Rule), v.Message})
	}
	return renderTable(w, []string{"TYPE", "KEY", "RULE", "MESSAGE"}, rows)
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
