// Package events merges locally stored events with subscribed ICS feeds
// and produces month layouts from them.
package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"volcal/internal/config"
	"volcal/internal/ics"
	"volcal/internal/layout"
	appLog "volcal/internal/log"
	"volcal/internal/model"
)

// EventStore is the subset of store.Store used here.
type EventStore interface {
	ListRange(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// FeedFetcher is the subset of ics.Fetcher used here.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// Options configures a Service.
type Options struct {
	Location    *time.Location
	WeekStart   time.Weekday
	MaxRows     int
	PaletteSize int
	// HorizonDays is the length of the Upcoming window.
	HorizonDays int
	Sources     []ics.Source
}

// OptionsFromConfig derives service options from the app config.
func OptionsFromConfig(cfg *config.Config) Options {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", cfg.Timezone)
	}

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}

	return Options{
		Location:    loc,
		WeekStart:   cfg.FirstWeekday(),
		MaxRows:     cfg.MaxRows,
		PaletteSize: len(cfg.Palette),
		HorizonDays: cfg.HorizonDays,
		Sources:     sources,
	}
}

// Service owns the parsed feed cache. It is safe for concurrent use.
type Service struct {
	store   EventStore
	fetcher FeedFetcher
	opts    Options
	now     func() time.Time

	mu          sync.RWMutex
	parsed      []ics.ParsedEvent
	bySource    map[string][]ics.ParsedEvent
	refreshedAt time.Time
}

// NewService constructs a Service. fetcher may be nil when no feeds are
// configured.
func NewService(store EventStore, fetcher FeedFetcher, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 90
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
	}
}

// Location returns the display location.
func (s *Service) Location() *time.Location { return s.opts.Location }

// RefreshedAt returns the time of the last successful feed refresh.
func (s *Service) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Refresh fetches and parses all feeds and swaps the cache. A source that
// yields nothing usable this round (fetch failed with no disk cache, or the
// body did not parse) keeps its events from the previous round. The
// returned error joins per-source failures.
func (s *Service) Refresh(ctx context.Context) error {
	if s.fetcher == nil || len(s.opts.Sources) == 0 {
		return nil
	}

	results, fetchErr := s.fetcher.FetchAll(ctx, s.opts.Sources)

	fresh := make(map[string][]ics.ParsedEvent, len(results))
	order := make([]string, 0, len(s.opts.Sources)+len(results))
	for _, src := range s.opts.Sources {
		order = append(order, src.ID)
	}

	var parseErrs []error
	for _, res := range results {
		evs, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("refresh: parse failed for source", err, "id", res.Source.ID)
			parseErrs = append(parseErrs, err)
			continue
		}
		if !slices.Contains(order, res.Source.ID) {
			order = append(order, res.Source.ID)
		}
		fresh[res.Source.ID] = evs
	}

	s.mu.Lock()
	next := make(map[string][]ics.ParsedEvent, len(order))
	parsed := make([]ics.ParsedEvent, 0)
	kept := 0
	for _, id := range order {
		evs, ok := fresh[id]
		if !ok {
			if evs, ok = s.bySource[id]; ok {
				kept++
			}
		}
		if !ok {
			continue
		}
		next[id] = evs
		parsed = append(parsed, evs...)
	}
	s.bySource = next
	s.parsed = parsed
	s.refreshedAt = s.now()
	s.mu.Unlock()

	appLog.Info("feeds refreshed", "sources", len(s.opts.Sources), "fetched", len(results), "kept_previous", kept, "events", len(parsed))

	if fetchErr != nil || len(parseErrs) > 0 {
		return fmt.Errorf("events: refresh: %w", errors.Join(append([]error{fetchErr}, parseErrs...)...))
	}
	return nil
}

// Window returns stored and feed events overlapping the inclusive day range
// [from, to]. Stored events come first, in store order, then feed events in
// feed order; the order feeds the layout's stable tie-break.
func (s *Service) Window(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	loc := s.opts.Location
	from = layout.DayOf(from, loc)
	to = layout.DayOf(to, loc)

	out := make([]model.CalendarEvent, 0)
	if s.store != nil {
		stored, err := s.store.ListRange(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("events: list stored: %w", err)
		}
		for _, ev := range stored {
			out = append(out, anchor(ev, loc))
		}
	}

	s.mu.RLock()
	parsed := s.parsed
	s.mu.RUnlock()

	if len(parsed) > 0 {
		res, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
			DisplayLocation: loc,
			RangeStart:      from,
			// Inclusive last day: anything starting before the next midnight.
			RangeEnd: to.AddDate(0, 0, 1).Add(-time.Nanosecond),
		})
		if err != nil {
			return nil, fmt.Errorf("events: expand feeds: %w", err)
		}
		for _, ev := range res.Events() {
			// Expansion keeps occurrences whose exclusive end touches from;
			// their last inclusive day is before the window.
			if layout.DayOf(ev.End, loc).Before(from) {
				continue
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

// Upcoming returns events from today through the configured horizon.
func (s *Service) Upcoming(ctx context.Context) ([]model.CalendarEvent, error) {
	today := layout.DayOf(s.now(), s.opts.Location)
	return s.Window(ctx, today, today.AddDate(0, 0, s.opts.HorizonDays))
}

// MonthLayout is the computed layout of one month view.
type MonthLayout struct {
	Grid     layout.Grid
	Result   layout.Result
	Segments []layout.Segment
}

// Layout computes the month view containing ref.
func (s *Service) Layout(ctx context.Context, ref time.Time) (MonthLayout, error) {
	g := layout.NewMonthGrid(ref.In(s.opts.Location), s.opts.WeekStart)

	evs, err := s.Window(ctx, g.First(), g.Last())
	if err != nil {
		return MonthLayout{}, err
	}

	res := layout.ComputePlacements(evs, g, layout.Options{
		MaxRows:     s.opts.MaxRows,
		PaletteSize: s.opts.PaletteSize,
	})
	if len(res.Overflow) > 0 {
		appLog.Debug("month layout overflow",
			"month", fmt.Sprintf("%04d-%02d", g.Year(), g.Month()),
			"placed", len(res.Placements),
			"hidden", len(res.Overflow),
		)
	}

	return MonthLayout{
		Grid:     g,
		Result:   res,
		Segments: layout.SegmentsFor(res.Placements),
	}, nil
}

// Find returns events in [from, to] whose ID or link target equals target.
// Recurring feed events share a target, so several may match.
func (s *Service) Find(ctx context.Context, target string, from, to time.Time) ([]model.CalendarEvent, error) {
	evs, err := s.Window(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []model.CalendarEvent
	for _, ev := range evs {
		if ev.ID == target || ev.LinkTarget() == target {
			out = append(out, ev)
		}
	}
	return out, nil
}

// anchor re-expresses floating all-day dates as midnight in loc.
func anchor(ev model.CalendarEvent, loc *time.Location) model.CalendarEvent {
	if !ev.AllDay {
		return ev
	}
	ev.Start = time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 0, 0, 0, 0, loc)
	ev.End = time.Date(ev.End.Year(), ev.End.Month(), ev.End.Day(), 0, 0, 0, 0, loc)
	return ev
}
