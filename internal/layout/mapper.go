package layout

import (
	"volcal/internal/model"
)

// Span is the inclusive cell range an event covers on a grid.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of cells covered.
func (s Span) Len() int { return s.End - s.Start + 1 }

// Overlaps reports whether two spans share at least one cell.
func (s Span) Overlaps(o Span) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// Clip records whether a span was cut at the grid edges: ClippedStart when
// the event starts before cell 0, ClippedEnd when it ends after cell 41.
type Clip struct {
	ClippedStart bool `json:"clipped_start"`
	ClippedEnd   bool `json:"clipped_end"`
}

// MapEvent maps an event onto grid cells. The second return value is false
// when the event's day range does not intersect the grid at all, or when the
// event ends before it starts.
func MapEvent(ev model.CalendarEvent, g Grid) (Span, bool) {
	span, _, ok := mapEvent(ev, g)
	return span, ok
}

func mapEvent(ev model.CalendarEvent, g Grid) (Span, Clip, bool) {
	loc := g.Location()
	start := DayOf(ev.Start, loc)
	end := DayOf(ev.End, loc)

	if end.Before(start) {
		return Span{}, Clip{}, false
	}
	// No overlap must be ruled out before clipping, otherwise an event
	// entirely before the window would be clipped to cell 0.
	if end.Before(g.First()) || start.After(g.Last()) {
		return Span{}, Clip{}, false
	}

	span := Span{Start: -1, End: -1}
	for i, d := range g.Days() {
		if span.Start < 0 && sameDay(d, start) {
			span.Start = i
		}
		if sameDay(d, end) {
			span.End = i
			break
		}
	}

	var clip Clip
	if span.Start < 0 {
		// Overlap is established, so a missing start means it began earlier.
		span.Start = 0
		clip.ClippedStart = true
	}
	if span.End < 0 {
		span.End = LastCell
		clip.ClippedEnd = true
	}
	return span, clip, true
}
