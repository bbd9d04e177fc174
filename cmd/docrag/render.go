package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func row(label string, value interface{}) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

// renderSummary formats an ingest run for the terminal.
func renderSummary(s *ingest.Summary) string {
	status := healthyStyle.Render("✓ complete")
	if s.Failed() {
		status = errorStyle.Render(fmt.Sprintf("✗ %d of %d batches failed", s.FailedBatches, s.Batches))
	}

	rows := []string{
		headerStyle.Render("Ingestion summary"),
		"",
		row("Pages processed", s.Pages),
		row("Chunks", s.Chunks),
		row("Tokens embedded", s.Tokens),
		row("Points written", s.Points),
		row("Batches", fmt.Sprintf("%d x %d", s.Batches, s.BatchSize)),
		row("Estimated cost", fmt.Sprintf("$%.4f", s.EstimatedCost)),
		row("Duration", s.Duration.Round(time.Millisecond)),
	}
	if s.CollectionPoints >= 0 {
		rows = append(rows, row("Collection size", s.CollectionPoints))
	}
	if s.Skipped > 0 {
		rows = append(rows, row("Skipped files", s.Skipped))
	}
	rows = append(rows, "", status, dimStyle.Render("run "+s.RunID))

	return containerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderCollection formats collection info for the terminal.
func renderCollection(info *vectorstore.CollectionInfo) string {
	return containerStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Collection "+info.Name),
		"",
		row("Vector size", info.VectorSize),
		row("Distance", info.Distance),
		row("Points", info.PointCount),
	))
}

// renderResult lists the passages of a search, best first.
func renderResult(res *retrieval.Result) string {
	if len(res.Passages) == 0 {
		return dimStyle.Render("no matching passages")
	}

	blocks := make([]string, 0, len(res.Passages))
	for i, p := range res.Passages {
		head := fmt.Sprintf("%d. %s › %s", i+1, p.Page, p.Section)
		meta := fmt.Sprintf("score %.3f  /%s  chunk %d", p.RelevanceScore, p.URL, p.ChunkIndex)
		blocks = append(blocks, lipgloss.JoinVertical(lipgloss.Left,
			valueStyle.Render(head),
			dimStyle.Render(meta),
			strings.TrimSpace(p.Text),
		))
	}
	return strings.Join(blocks, "\n\n")
}
