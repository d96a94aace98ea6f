package model

import (
	"errors"
	"fmt"
	"time"
)

// Length caps for user-supplied event fields.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200
	MaxTargetLength      = 512
)

// CalendarEvent is a volunteer event as the month calendar sees it.
//
// Start and End are inclusive at day granularity: an event with
// Start == End occupies a single day cell. Target is the identifier used
// when a rendered band is clicked (usually the event ID itself).
type CalendarEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Target string `json:"target"`

	// SourceID is empty for locally stored events and holds the ICS
	// source ID for feed events.
	SourceID string `json:"source_id,omitempty"`

	AllDay      bool   `json:"all_day"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// ErrInvalid wraps every error returned by Validate.
var ErrInvalid = errors.New("invalid event")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Validate checks the event invariants and returns the first violation.
func (e *CalendarEvent) Validate() error {
	if e.ID == "" {
		return invalidf("event id cannot be empty")
	}
	if e.Name == "" {
		return invalidf("event name cannot be empty")
	}
	if len(e.Name) > MaxNameLength {
		return invalidf("event name cannot exceed %d characters", MaxNameLength)
	}
	if e.Start.IsZero() {
		return invalidf("event start date is required")
	}
	if e.End.IsZero() {
		return invalidf("event end date is required")
	}
	if e.End.Before(e.Start) {
		return invalidf("event end date cannot be before start date")
	}
	if len(e.Description) > MaxDescriptionLength {
		return invalidf("event description cannot exceed %d characters", MaxDescriptionLength)
	}
	if len(e.Location) > MaxLocationLength {
		return invalidf("event location cannot exceed %d characters", MaxLocationLength)
	}
	if len(e.Target) > MaxTargetLength {
		return invalidf("event target cannot exceed %d characters", MaxTargetLength)
	}
	return nil
}

// LinkTarget returns Target, or the event ID when no target is set.
func (e *CalendarEvent) LinkTarget() string {
	if e.Target != "" {
		return e.Target
	}
	return e.ID
}

// Occurrence represents a single concrete instance of a feed event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone. End is exclusive,
	// as in iCalendar.
	Start time.Time
	End   time.Time
}

// CalendarEvent converts the occurrence into an inclusive-end calendar event.
//
// All-day DTEND is exclusive, so the last covered day is the day before End.
// Timed events ending exactly at midnight also end on the previous day.
func (o Occurrence) CalendarEvent() CalendarEvent {
	end := o.End
	if end.IsZero() || end.Before(o.Start) {
		end = o.Start
	}
	if end.After(o.Start) && isMidnight(end) {
		end = end.AddDate(0, 0, -1)
	}

	id := o.UID
	if o.InstanceKey != "" {
		id = o.UID + "@" + o.InstanceKey
	}

	return CalendarEvent{
		ID:          id,
		Name:        o.Summary,
		Start:       o.Start,
		End:         end,
		Target:      o.UID,
		SourceID:    o.SourceID,
		AllDay:      o.AllDay,
		Location:    o.Location,
		Description: o.Description,
	}
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}
