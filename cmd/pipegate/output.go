package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	idStyle       = lipgloss.NewStyle().Width(28)
	statusStyle   = lipgloss.NewStyle().Width(10).Bold(true)
	runnableStyle = statusStyle.Foreground(lipgloss.Color("#22c55e"))
	rejectedStyle = statusStyle.Foreground(lipgloss.Color("#ef4444"))
	erroredStyle  = statusStyle.Foreground(lipgloss.Color("#eab308"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b"))
)

func statusCell(status string) string {
	switch status {
	case statusRunnable:
		return runnableStyle.Render("RUNNABLE")
	case statusRejected:
		return rejectedStyle.Render("REJECTED")
	default:
		return erroredStyle.Render("ERROR")
	}
}

func renderTable(report *checkReport) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Pipeline checks"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("validators: " + strings.Join(report.Validators, " -> ")))
	b.WriteString("\n\n")

	for _, r := range report.Results {
		line := idStyle.Render(r.PipelineID) + " " + statusCell(r.Status)
		switch r.Status {
		case statusRejected:
			line += fmt.Sprintf(" %s [%s] %s", r.Kind, r.Validator, r.Message)
		case statusError:
			line += " " + r.Message
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d checked: %d runnable, %d rejected, %d errored",
		report.Summary.Total, report.Summary.Runnable, report.Summary.Rejected, report.Summary.Errored)))
	b.WriteString("\n")
	return b.String()
}
