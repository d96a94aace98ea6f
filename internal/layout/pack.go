package layout

import (
	"slices"

	"volcal/internal/model"
)

// Defaults used when Options carries non-positive values.
const (
	DefaultMaxRows     = 3
	DefaultPaletteSize = 6
)

// Options bounds the packing.
type Options struct {
	// MaxRows is the number of bands available per week. Events that do
	// not fit are reported in Result.Overflow instead of growing the grid.
	MaxRows int
	// PaletteSize is the number of color slots cycled through.
	PaletteSize int
}

func (o Options) normalized() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.PaletteSize <= 0 {
		o.PaletteSize = DefaultPaletteSize
	}
	return o
}

// Placement is the position of one visible event.
type Placement struct {
	Event model.CalendarEvent `json:"event"`
	Span  Span                `json:"span"`
	Clip  Clip                `json:"clip"`
	Row   int                 `json:"row"`
	// Color is a palette slot. It only differentiates neighbours visually
	// and must not be used to identify an event.
	Color int `json:"color"`
}

// Overflow is a visible event that did not fit into any row.
type Overflow struct {
	Event model.CalendarEvent `json:"event"`
	Span  Span                `json:"span"`
}

// Result is the full layout of one grid.
type Result struct {
	Placements []Placement `json:"placements"`
	Overflow   []Overflow  `json:"overflow"`
	// Hidden[i] is the number of overflowed events covering cell i.
	Hidden [Cells]int `json:"hidden"`
}

// HiddenAt returns the overflow count for cell i, 0 when out of range.
func (r Result) HiddenAt(i int) int {
	if i < 0 || i >= Cells {
		return 0
	}
	return r.Hidden[i]
}

type candidate struct {
	ev   model.CalendarEvent
	span Span
	clip Clip
}

// ComputePlacements lays out events on g.
//
// Visible events are sorted by start day (stable, so ties keep input order)
// and placed first-fit: each takes the lowest row whose last placed event
// ends strictly before it starts. Events that find no row among
// opts.MaxRows are returned in Overflow. Identical inputs always produce
// identical results.
func ComputePlacements(events []model.CalendarEvent, g Grid, opts Options) Result {
	opts = opts.normalized()
	loc := g.Location()

	cands := make([]candidate, 0, len(events))
	for _, ev := range events {
		span, clip, ok := mapEvent(ev, g)
		if !ok {
			continue
		}
		cands = append(cands, candidate{ev: ev, span: span, clip: clip})
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		return DayOf(a.ev.Start, loc).Compare(DayOf(b.ev.Start, loc))
	})

	// rowEnd[r] is the end cell of the last event placed in row r, -1 if empty.
	rowEnd := make([]int, opts.MaxRows)
	for r := range rowEnd {
		rowEnd[r] = -1
	}

	res := Result{
		Placements: make([]Placement, 0, len(cands)),
		Overflow:   []Overflow{},
	}
	for _, c := range cands {
		row := -1
		for r, end := range rowEnd {
			if end < c.span.Start {
				row = r
				break
			}
		}
		if row < 0 {
			res.Overflow = append(res.Overflow, Overflow{Event: c.ev, Span: c.span})
			for i := c.span.Start; i <= c.span.End; i++ {
				res.Hidden[i]++
			}
			continue
		}

		rowEnd[row] = c.span.End
		res.Placements = append(res.Placements, Placement{
			Event: c.ev,
			Span:  c.span,
			Clip:  c.clip,
			Row:   row,
			Color: len(res.Placements) % opts.PaletteSize,
		})
	}
	return res
}
