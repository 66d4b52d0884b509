package commands

import (
	"feedcloud/internal/archive"
	"feedcloud/internal/pipeline"
	"feedcloud/internal/reduce"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
)

const topTokens = 20

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func printReduction(result reduce.Result) {
	t := newTable()
	t.AppendHeader(table.Row{"Distinct", "Retained", "Pruned", "Corpus length"})
	t.AppendRow(table.Row{
		result.Distinct(),
		len(result.Tokens),
		result.Pruned,
		utf8.RuneCountInString(result.Corpus),
	})
	t.Render()

	top := result.Top(topTokens)
	if len(top) == 0 {
		return
	}
	t = newTable()
	t.AppendHeader(table.Row{"#", "Token", "Count"})
	for i, tc := range top {
		t.AppendRow(table.Row{i + 1, tc.Token, tc.Count})
	}
	t.Render()
}

func printReport(report pipeline.Report) {
	t := newTable()
	t.AppendHeader(table.Row{"Status", "Scrolls", "Captures", "Items", "Tags", "Output"})
	t.AppendRow(table.Row{
		report.Status,
		report.Scroll.Scrolls,
		len(report.Captures),
		len(report.URIs),
		len(report.Tags),
		report.Output,
	})
	t.Render()

	if report.Status == pipeline.StatusOK {
		printReduction(report.Reduction)
	}
}

func printRuns(runs []archive.Run) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Started", "Status", "Scrolls", "Captures", "Items", "Tags", "Output"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Format(time.DateTime),
			run.Status,
			run.Scrolls,
			run.Captures,
			run.URIs,
			run.Tags,
			run.Output,
		})
	}
	t.Render()
}

// fetchProgress draws a progress bar for the tag fetching loop, the tracker
// is only created once the total is known.
type fetchProgress struct {
	writer  progress.Writer
	tracker *progress.Tracker
}

func newFetchProgress() *fetchProgress {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	return &fetchProgress{writer: pw}
}

func (p *fetchProgress) update(done, total int, uri string) {
	if p.tracker == nil {
		p.tracker = &progress.Tracker{
			Message: "fetching tags",
			Total:   int64(total),
			Units:   progress.UnitsDefault,
		}
		p.writer.AppendTracker(p.tracker)
		go p.writer.Render()
	}
	p.tracker.SetValue(int64(done))
	if done == total {
		p.tracker.MarkAsDone()
	}
}

func (p *fetchProgress) stop() {
	if p.tracker == nil {
		return
	}
	if !p.tracker.IsDone() {
		p.tracker.MarkAsErrored()
	}
	for p.writer.IsRenderInProgress() {
		p.writer.Stop()
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr)
}
