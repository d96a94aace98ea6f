package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//volcal//test//EN
BEGIN:VEVENT
UID:single-1
DTSTAMP:20250101T000000Z
SUMMARY:Beach cleanup
LOCATION:Pier 3
DTSTART:20250301T090000Z
DTEND:20250301T120000Z
END:VEVENT
BEGIN:VEVENT
UID:allday-1
DTSTAMP:20250101T000000Z
SUMMARY:Food drive
DTSTART;VALUE=DATE:20250310
DTEND;VALUE=DATE:20250313
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
SUMMARY:Shelter shift
DTSTART:20250303T170000Z
DTEND:20250303T200000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250310T170000Z
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250317T170000Z
SUMMARY:Shelter shift (moved)
DTSTART:20250318T170000Z
DTEND:20250318T200000Z
END:VEVENT
BEGIN:VEVENT
UID:cancelled-1
DTSTAMP:20250101T000000Z
STATUS:CANCELLED
SUMMARY:Gala
DTSTART:20250320T180000Z
DTEND:20250320T220000Z
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250101T000000Z
SUMMARY:No UID
DTSTART:20250321T180000Z
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

var testSource = Source{ID: "food-bank", URL: "https://example.org/feed.ics"}

func parseSample(t *testing.T) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(testSource, crlf(sampleFeed))
	require.NoError(t, err)
	return events
}

func TestParseICS(t *testing.T) {
	events := parseSample(t)

	// cancelled-1 and the UID-less event are skipped.
	require.Len(t, events, 4)

	single := events[0]
	assert.Equal(t, "single-1", single.UID)
	assert.Equal(t, "Beach cleanup", single.Summary)
	assert.Equal(t, "Pier 3", single.Location)
	assert.Equal(t, testSource, single.Source)
	assert.False(t, single.AllDay)
	assert.True(t, single.Start.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, single.End.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))

	allDay := events[1]
	assert.True(t, allDay.AllDay)
	y, m, d := allDay.Start.Date()
	assert.Equal(t, []int{2025, 3, 10}, []int{y, int(m), d})

	weekly := events[2]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", weekly.RawRRule)
	require.Len(t, weekly.ExDates, 1)
	assert.True(t, weekly.ExDates[0].Equal(time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)))

	override := events[3]
	assert.True(t, override.IsOverride)
	require.NotNil(t, override.Recurrence)
	assert.True(t, override.Recurrence.Equal(time.Date(2025, 3, 17, 17, 0, 0, 0, time.UTC)))
}

func TestParseICS_EmptyAndInvalid(t *testing.T) {
	_, err := ParseICS(testSource, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	events := parseSample(t)

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	var got []string
	for _, occ := range res.Occurrences {
		got = append(got, occ.UID+" "+occ.Start.Format("01-02")+" "+occ.Summary)
	}
	assert.Equal(t, []string{
		"single-1 03-01 Beach cleanup",
		"allday-1 03-10 Food drive",
		"weekly-1 03-03 Shelter shift",
		"weekly-1 03-18 Shelter shift (moved)",
		"weekly-1 03-24 Shelter shift",
	}, got)

	evs := res.Events()
	require.Len(t, evs, 5)
	assert.Equal(t, "food-bank", evs[1].SourceID)
	assert.Equal(t, "allday-1", evs[1].Target)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), evs[1].End)
	assert.NotEqual(t, evs[2].ID, evs[4].ID)
	assert.Equal(t, evs[2].Target, evs[4].Target)
}

func TestExpandOccurrences_RangeFilter(t *testing.T) {
	events := parseSample(t)

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "Shelter shift (moved)", res.Occurrences[0].Summary)
}

func TestExpandOccurrences_Cap(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		Source:   testSource,
		UID:      "daily",
		Summary:  "Dog walking",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}}

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart:             start,
		RangeEnd:               start.AddDate(0, 1, 0),
		MaxOccurrencesPerEvent: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 5)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExpandOccurrences_InvalidRange(t *testing.T) {
	_, err := ExpandOccurrences(nil, ExpandConfig{
		RangeStart: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "feed", URL: srv.URL + "/private/token.ics"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, crlf(sampleFeed), first.Body)

	second, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	failing.Store(true)
	third, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, first.Body, third.Body)

	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_FailureWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.FetchOne(context.Background(), Source{ID: "gone", URL: srv.URL})
	assert.Error(t, err)
}

func TestFetcher_FetchAllJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(crlf(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	results, err := f.FetchAll(context.Background(), []Source{
		{ID: "ok", URL: srv.URL},
		{ID: "missing-url"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-url")
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Source.ID)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.org/...(redacted)", redactURL("https://calendar.example.org/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
