package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mklimuk/diary-pilot/pkg/dump"
	"github.com/mklimuk/diary-pilot/pkg/reconcile"
)

type count struct {
	label string
	n     int
}

// renderCounts lays out a two column summary with the counts right aligned.
func renderCounts(title string, counts []count) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	for _, c := range counts {
		tw.AppendRow(table.Row{c.label, strconv.Itoa(c.n)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}

func exportSummary(r reconcile.ExportReport) string {
	return renderCounts("export", []count{
		{"accepted", r.Accepted},
		{"already synced", r.Known},
		{"skipped", r.Skipped},
		{"new files", r.Dumped[dump.StatusNew]},
		{"changed files", r.Dumped[dump.StatusChanged]},
		{"unchanged files", r.Dumped[dump.StatusUnchanged]},
	})
}

func ingestSummary(r reconcile.IngestReport) string {
	return renderCounts("ingest", []count{
		{"created", r.Created},
		{"updated", r.Updated},
		{"empty", r.Empty},
		{"days added", r.Added},
		{"trimmed", r.Trimmed},
	})
}
