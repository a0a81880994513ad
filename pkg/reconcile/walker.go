package reconcile

import (
	"context"
	"io"

	"cloud.google.com/go/civil"

	"github.com/mklimuk/diary-pilot/pkg/archive"
	"github.com/mklimuk/diary-pilot/pkg/dates"
	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// Item is one listing entry with either its resolved period or the reason it
// could not be resolved.
type Item struct {
	Entry  archive.Entry
	Period diary.Period
	Err    error
}

// Walker resolves listing entries one at a time. It holds no cursor: the
// caller passes the anchor date for every step.
type Walker struct {
	entries  archive.Iterator
	earliest civil.Date
}

// NewWalker walks entries until the listing ends or an entry resolves to a
// day before earliest. A zero earliest walks the whole listing.
func NewWalker(entries archive.Iterator, earliest civil.Date) *Walker {
	return &Walker{entries: entries, earliest: earliest}
}

// Next resolves the next entry against previous, which may be nil. Resolution
// failures are reported in Item.Err; only listing failures and io.EOF are
// returned as errors.
func (w *Walker) Next(ctx context.Context, previous *civil.Date) (Item, error) {
	e, err := w.entries.Next(ctx)
	if err != nil {
		return Item{}, err
	}
	item := Item{Entry: e}

	start, end, err := dates.InferDate(e.Label, previous)
	if err != nil {
		item.Err = err
		return item, nil
	}
	p, err := diary.NewPeriod(start, end)
	if err != nil {
		item.Err = err
		return item, nil
	}
	if p.Start.Before(w.earliest) {
		return Item{}, io.EOF
	}

	modified := civil.DateOf(e.Modified)
	p.RemoteID = e.RemoteID
	p.StartURL = e.PageURL
	p.Modified = &modified
	if previous != nil {
		anchor := *previous
		p.StartDate = &anchor
	}
	item.Period = p
	return item, nil
}
