package layout

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcal/internal/model"
)

func event(id string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{ID: id, Name: "event " + id, Start: start, End: end}
}

func march2025() Grid {
	return NewMonthGrid(date(2025, time.March, 1), time.Sunday)
}

func TestMapEvent(t *testing.T) {
	g := march2025()

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		want      Span
		wantClip  Clip
		wantShown bool
	}{
		{"inside", date(2025, 3, 1), date(2025, 3, 3), Span{6, 8}, Clip{}, true},
		{"single day", date(2025, 3, 2), date(2025, 3, 2), Span{7, 7}, Clip{}, true},
		{"first cell", date(2025, 2, 23), date(2025, 2, 23), Span{0, 0}, Clip{}, true},
		{"last cell", date(2025, 4, 5), date(2025, 4, 5), Span{41, 41}, Clip{}, true},
		{"starts before window", date(2025, 2, 10), date(2025, 2, 25), Span{0, 2}, Clip{ClippedStart: true}, true},
		{"ends after window", date(2025, 3, 30), date(2025, 4, 20), Span{35, 41}, Clip{ClippedEnd: true}, true},
		{"covers whole window", date(2025, 1, 1), date(2025, 5, 1), Span{0, 41}, Clip{true, true}, true},
		{"entirely before", date(2025, 2, 1), date(2025, 2, 22), Span{}, Clip{}, false},
		{"entirely after", date(2025, 4, 6), date(2025, 4, 9), Span{}, Clip{}, false},
		{"end before start", date(2025, 3, 5), date(2025, 3, 4), Span{}, Clip{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			span, clip, ok := mapEvent(event("x", tc.start, tc.end), g)
			require.Equal(t, tc.wantShown, ok)
			assert.Equal(t, tc.want, span)
			assert.Equal(t, tc.wantClip, clip)

			pub, pubOK := MapEvent(event("x", tc.start, tc.end), g)
			assert.Equal(t, ok, pubOK)
			assert.Equal(t, span, pub)
		})
	}
}

func TestMapEvent_TimedEventsUseGridLocation(t *testing.T) {
	g := march2025()
	// 23:30 on Mar 3 in UTC-5 is Mar 4 in UTC.
	est := time.FixedZone("EST", -5*60*60)
	ev := event("x", time.Date(2025, 3, 3, 9, 0, 0, 0, est), time.Date(2025, 3, 3, 23, 30, 0, 0, est))

	span, ok := MapEvent(ev, g)
	require.True(t, ok)
	assert.Equal(t, Span{8, 9}, span)
}

func TestMapEvent_InsideMatchesGridDates(t *testing.T) {
	g := march2025()
	for s := 0; s < Cells; s++ {
		for e := s; e < Cells; e += 5 {
			span, ok := MapEvent(event("x", g.At(s), g.At(e)), g)
			require.True(t, ok)
			require.Equal(t, Span{s, e}, span)
		}
	}
}

func TestComputePlacements_MarchScenario(t *testing.T) {
	g := march2025()
	events := []model.CalendarEvent{
		event("A", date(2025, 3, 1), date(2025, 3, 3)),
		event("B", date(2025, 3, 2), date(2025, 3, 2)),
		event("C", date(2025, 3, 1), date(2025, 4, 5)),
	}

	res := ComputePlacements(events, g, Options{MaxRows: 3})
	require.Len(t, res.Placements, 3)
	assert.Empty(t, res.Overflow)

	byID := map[string]Placement{}
	for _, p := range res.Placements {
		byID[p.Event.ID] = p
	}

	// Stable sort by start day: A, C (both Mar 1, A listed first), then B.
	assert.Equal(t, []string{"A", "C", "B"}, []string{
		res.Placements[0].Event.ID, res.Placements[1].Event.ID, res.Placements[2].Event.ID,
	})
	assert.Equal(t, 0, byID["A"].Row)
	assert.Equal(t, 1, byID["C"].Row)
	assert.Equal(t, 2, byID["B"].Row)
	assert.NotEqual(t, byID["A"].Row, byID["B"].Row)

	assert.Equal(t, Span{6, 8}, byID["A"].Span)
	assert.Equal(t, Span{7, 7}, byID["B"].Span)
	assert.Equal(t, LastCell, byID["C"].Span.End)

	assert.Equal(t, 0, byID["A"].Color)
	assert.Equal(t, 1, byID["C"].Color)
	assert.Equal(t, 2, byID["B"].Color)
}

func TestComputePlacements_ClipsPastGridEnd(t *testing.T) {
	g := march2025()
	res := ComputePlacements([]model.CalendarEvent{
		event("C", date(2025, 3, 1), date(2025, 4, 30)),
	}, g, Options{})

	require.Len(t, res.Placements, 1)
	assert.Equal(t, Span{6, LastCell}, res.Placements[0].Span)
	assert.True(t, res.Placements[0].Clip.ClippedEnd)
}

func TestComputePlacements_DropsBeyondMaxRows(t *testing.T) {
	g := march2025()
	day := date(2025, 3, 12)
	var events []model.CalendarEvent
	for i := range 5 {
		events = append(events, event(fmt.Sprintf("e%d", i), day, day))
	}

	res := ComputePlacements(events, g, Options{MaxRows: 3})
	require.Len(t, res.Placements, 3)
	require.Len(t, res.Overflow, 2)

	for i, p := range res.Placements {
		assert.Equal(t, fmt.Sprintf("e%d", i), p.Event.ID)
		assert.Equal(t, i, p.Row)
	}
	assert.Equal(t, "e3", res.Overflow[0].Event.ID)
	assert.Equal(t, "e4", res.Overflow[1].Event.ID)

	idx := g.IndexOf(day)
	assert.Equal(t, 2, res.HiddenAt(idx))
	assert.Equal(t, 0, res.HiddenAt(idx-1))
	assert.Equal(t, 0, res.HiddenAt(-1))
	assert.Equal(t, 0, res.HiddenAt(Cells))
}

func TestComputePlacements_ReusesRowAfterGap(t *testing.T) {
	g := march2025()
	res := ComputePlacements([]model.CalendarEvent{
		event("a", date(2025, 3, 3), date(2025, 3, 5)),
		event("b", date(2025, 3, 5), date(2025, 3, 6)), // touches a on Mar 5
		event("c", date(2025, 3, 6), date(2025, 3, 8)), // starts after a ends
	}, g, Options{MaxRows: 2})

	require.Len(t, res.Placements, 3)
	rows := map[string]int{}
	for _, p := range res.Placements {
		rows[p.Event.ID] = p.Row
	}
	assert.Equal(t, 0, rows["a"])
	assert.Equal(t, 1, rows["b"])
	assert.Equal(t, 0, rows["c"])
}

func TestComputePlacements_ExcludesInvisible(t *testing.T) {
	g := march2025()
	res := ComputePlacements([]model.CalendarEvent{
		event("before", date(2025, 1, 1), date(2025, 2, 22)),
		event("after", date(2025, 4, 6), date(2025, 4, 6)),
		event("inside", date(2025, 3, 10), date(2025, 3, 10)),
	}, g, Options{})

	require.Len(t, res.Placements, 1)
	assert.Equal(t, "inside", res.Placements[0].Event.ID)
	assert.Empty(t, res.Overflow)
}

func TestComputePlacements_ColorCycles(t *testing.T) {
	g := march2025()
	var events []model.CalendarEvent
	for i := range 8 {
		d := date(2025, 3, 1+i*3)
		events = append(events, event(fmt.Sprintf("e%d", i), d, d))
	}

	res := ComputePlacements(events, g, Options{PaletteSize: 3})
	require.Len(t, res.Placements, 8)
	for i, p := range res.Placements {
		assert.Equal(t, i%3, p.Color)
	}
}

func randomEvents(r *rand.Rand, n int) []model.CalendarEvent {
	base := date(2025, 2, 1)
	out := make([]model.CalendarEvent, 0, n)
	for i := range n {
		start := base.AddDate(0, 0, r.IntN(80))
		end := start.AddDate(0, 0, r.IntN(10))
		out = append(out, event(fmt.Sprintf("r%d", i), start, end))
	}
	return out
}

func TestComputePlacements_Properties(t *testing.T) {
	g := march2025()
	r := rand.New(rand.NewPCG(7, 42))

	for round := range 200 {
		events := randomEvents(r, 1+r.IntN(40))
		opts := Options{MaxRows: 1 + r.IntN(5)}

		res := ComputePlacements(events, g, opts)

		// Same-row spans never overlap.
		for i, a := range res.Placements {
			require.GreaterOrEqual(t, a.Row, 0)
			require.Less(t, a.Row, opts.MaxRows)
			for _, b := range res.Placements[i+1:] {
				if a.Row == b.Row {
					require.False(t, a.Span.Overlaps(b.Span), "round %d: %s and %s share row %d", round, a.Event.ID, b.Event.ID, a.Row)
				}
			}
		}

		// Every visible event is either placed or reported as overflow.
		visible := 0
		for _, ev := range events {
			if _, ok := MapEvent(ev, g); ok {
				visible++
			}
		}
		require.Equal(t, visible, len(res.Placements)+len(res.Overflow))

		// Idempotence.
		require.Equal(t, res, ComputePlacements(events, g, opts))
	}
}
