// Package layout computes month-view calendar bands: the 6x7 day grid, the
// grid cells each event covers, a row per event so that overlapping events
// stack, and the per-week segments a renderer draws.
//
// Everything here is a pure function of its inputs. Callers recompute the
// whole layout when the displayed month or the event list changes.
package layout

import (
	"iter"
	"time"
)

// Grid geometry.
const (
	DaysPerWeek = 7
	Weeks       = 6
	Cells       = DaysPerWeek * Weeks // 42
	LastCell    = Cells - 1
)

// Grid is the visible month: 42 consecutive days starting on the configured
// first day of the week on or before the 1st of the month.
//
// Only the first day is stored; cells are derived on demand so iterating the
// grid is cheap and can be repeated.
type Grid struct {
	first time.Time
	month time.Month
	year  int
}

// NewMonthGrid returns the grid for the month containing ref. The grid uses
// ref's location; every cell is midnight in that location.
func NewMonthGrid(ref time.Time, weekStart time.Weekday) Grid {
	loc := ref.Location()
	firstOfMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)

	// Walk back to the configured week start (0..6 days).
	back := (int(firstOfMonth.Weekday()) - int(weekStart) + DaysPerWeek) % DaysPerWeek

	return Grid{
		first: firstOfMonth.AddDate(0, 0, -back),
		month: ref.Month(),
		year:  ref.Year(),
	}
}

// First returns the day in cell 0.
func (g Grid) First() time.Time { return g.first }

// Last returns the day in cell 41.
func (g Grid) Last() time.Time { return g.At(LastCell) }

// Month returns the reference month of the grid.
func (g Grid) Month() time.Month { return g.month }

// Year returns the reference year of the grid.
func (g Grid) Year() int { return g.year }

// Location returns the location all cells are expressed in.
func (g Grid) Location() *time.Location { return g.first.Location() }

// WeekStart returns the weekday of column 0.
func (g Grid) WeekStart() time.Weekday { return g.first.Weekday() }

// At returns the day in cell i. i is not range-checked.
func (g Grid) At(i int) time.Time {
	// AddDate keeps midnight across DST changes, Add(24h) would not.
	return g.first.AddDate(0, 0, i)
}

// Days yields (index, day) for all 42 cells in order.
func (g Grid) Days() iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		for i := 0; i < Cells; i++ {
			if !yield(i, g.At(i)) {
				return
			}
		}
	}
}

// InMonth reports whether cell i belongs to the reference month.
func (g Grid) InMonth(i int) bool {
	d := g.At(i)
	return d.Month() == g.month && d.Year() == g.year
}

// IndexOf returns the cell index of the day containing t, or -1 when t falls
// outside the grid. The lookup is a linear scan over the fixed 42 cells.
func (g Grid) IndexOf(t time.Time) int {
	day := DayOf(t, g.Location())
	for i, d := range g.Days() {
		if sameDay(d, day) {
			return i
		}
	}
	return -1
}

// Contains reports whether the day containing t is one of the grid's cells.
func (g Grid) Contains(t time.Time) bool {
	day := DayOf(t, g.Location())
	return !day.Before(g.first) && !day.After(g.Last())
}

// DayOf truncates t to midnight of its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
