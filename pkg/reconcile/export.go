package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/db"
	"github.com/mklimuk/diary-pilot/pkg/diary"
	"github.com/mklimuk/diary-pilot/pkg/dump"
	"github.com/mklimuk/diary-pilot/pkg/normalize"
)

// ExportOptions control a single export run.
type ExportOptions struct {
	StartURL  string      // listing page to start from, empty for the newest
	StartDate *civil.Date // anchor for resolving the first entry
	Earliest  civil.Date  // stop at entries before this day; zero walks everything
	DryRun    bool        // resolve and diff, but write nothing
	Quiet     bool
}

// ExportReport summarises an export run.
type ExportReport struct {
	Accepted int
	Known    int // in the ledger with the same modification time, passed over
	Skipped  int
	Dumped   map[dump.Status]int
	// Resume is the listing page and anchor of the last accepted entry.
	ResumeURL  string
	ResumeDate *civil.Date
}

// Exporter pulls entries from the archive.
type Exporter struct {
	archive Archive
	ledger  Ledger
	dumper  Dumper
	handler ErrorHandler
	log     *zap.Logger
}

// NewExporter creates an Exporter. ledger and dumper are optional; a nil
// handler logs failures with LoggingHandler.
func NewExporter(a Archive, ledger Ledger, dumper Dumper, handler ErrorHandler, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("export")
	if handler == nil {
		handler = LoggingHandler(logger)
	}
	return &Exporter{archive: a, ledger: ledger, dumper: dumper, handler: handler, log: logger}
}

// Export walks the listing newest first, checks each entry against its
// neighbours and writes the survivors out.
func (x *Exporter) Export(ctx context.Context, opts ExportOptions) (ExportReport, error) {
	report := ExportReport{Dumped: map[dump.Status]int{}}
	walker := NewWalker(x.archive.Listing(opts.StartURL), opts.Earliest)

	// last accepted (or already known) start; nil until the first one
	var previous *civil.Date
	for {
		anchor := previous
		if anchor == nil {
			anchor = opts.StartDate
		}
		item, err := walker.Next(ctx, anchor)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("failed to walk listing: %w", err)
		}
		e := item.Entry

		// only an entry untouched since it was recorded is passed over
		if x.ledger != nil {
			rec, err := x.ledger.GetPeriodByRemoteID(e.RemoteID)
			if err != nil {
				return report, err
			}
			if rec != nil && rec.Modified.Equal(e.Modified) {
				day := rec.Day
				previous = &day
				report.Known++
				x.log.Debug("already exported", zap.String("id", e.RemoteID), zap.Stringer("day", day))
				continue
			}
		}

		if item.Err == nil {
			item.Err = x.checkGaps(item, previous)
		}
		if item.Err != nil {
			if x.handler(item.Err, e.DetailURL, e.Modified) == Abort {
				return report, item.Err
			}
			report.Skipped++
			continue
		}

		p := item.Period
		detail, err := x.archive.Detail(ctx, e.RemoteID)
		if err != nil {
			return report, err
		}
		p, err = normalize.Normalize(p, detail.Summary, detail.Body)
		if err != nil {
			if x.handler(err, e.DetailURL, e.Modified) == Abort {
				return report, err
			}
			report.Skipped++
			continue
		}
		if !opts.Quiet {
			x.log.Info("exported",
				zap.String("period", p.HumanDate()),
				zap.Int("year", p.Start.Year),
				zap.String("url", e.DetailURL),
				zap.String("resume", resumeHint(p)),
				zap.String("content", p.String()),
			)
		}

		if x.dumper != nil {
			res, err := x.dumper.Write(p, opts.DryRun)
			if err != nil {
				return report, err
			}
			report.Dumped[res.Status]++
		}
		if x.ledger != nil && !opts.DryRun {
			if err := x.ledger.RecordPeriod(db.PeriodRecord{
				Day:       p.Start,
				RemoteID:  p.RemoteID,
				PageURL:   p.StartURL,
				Modified:  e.Modified,
				Direction: db.DirectionPull,
			}); err != nil {
				return report, err
			}
		}

		report.Accepted++
		report.ResumeURL = p.StartURL
		report.ResumeDate = p.StartDate
		start := p.Start
		previous = &start
	}
	return report, nil
}

// checkGaps compares a resolved entry with its modification day and with the
// previously accepted entry.
func (x *Exporter) checkGaps(item Item, previous *civil.Date) error {
	p := item.Period
	last := p.Last()
	modified := civil.DateOf(item.Entry.Modified)
	if last.DaysSince(modified) > MaxModifiedGapDays {
		return &GapError{Period: p, Days: modified.DaysSince(last)}
	}
	if previous != nil {
		gap := previous.DaysSince(last)
		if gap < MinPreviousGapDays || gap > MaxPreviousGapDays {
			return &GapError{Period: p, Days: gap, Previous: true}
		}
	}
	return nil
}

func resumeHint(p diary.Period) string {
	hint := "--start-url " + p.StartURL
	if p.StartDate != nil {
		hint += " --start-date " + p.StartDate.String()
	}
	return hint
}
