package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"volcal/internal/layout"
	appLog "volcal/internal/log"
	"volcal/internal/model"
)

const (
	dateFormat  = "2006-01-02"
	monthFormat = "2006-01"

	maxRequestBody = 64 << 10
)

// parseMonth parses a "YYYY-MM" query value in loc. An empty value means
// the current month.
func parseMonth(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now = now.In(loc)
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(monthFormat, raw, loc)
	if err != nil {
		return time.Time{}, badRequest("invalid month %q, expected YYYY-MM", raw)
	}
	return t, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateFormat, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// handleListEvents returns events overlapping [from, to].
//
// GET /api/events?from=2025-03-01&to=2025-03-31
//   - from: 기본값은 오늘
//   - to:   기본값은 from + 30일
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Location()
	q := r.URL.Query()

	from := layout.DayOf(s.now(), loc)
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, 30)
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to = t
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	evs, err := s.svc.Window(r.Context(), from, to)
	if err != nil {
		appLog.Error("api events: window failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     evs,
		RangeStart: from.Format(dateFormat),
		RangeEnd:   to.Format(dateFormat),
		TimeZone:   loc.String(),
	})
}

type eventsResponse struct {
	Events     []model.CalendarEvent `json:"events"`
	RangeStart string                `json:"range_start"`
	RangeEnd   string                `json:"range_end"`
	TimeZone   string                `json:"timezone"`
}

// eventRequest is the JSON body for POST /api/events.
type eventRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Target      string `json:"target"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (req eventRequest) toEvent(loc *time.Location) (model.CalendarEvent, error) {
	start, err := parseDate(req.Start, loc)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	end := start
	if req.End != "" {
		if end, err = parseDate(req.End, loc); err != nil {
			return model.CalendarEvent{}, err
		}
	}
	return model.CalendarEvent{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Start:       start,
		End:         end,
		Target:      strings.TrimSpace(req.Target),
		Location:    req.Location,
		Description: req.Description,
	}, nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev, err := req.toEvent(s.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.store.Save(r.Context(), ev)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api events: save failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}
	s.invalidateLayouts()

	appLog.Info("event saved", "id", saved.ID, "start", saved.Start.Format(dateFormat), "end", saved.End.Format(dateFormat))
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ev, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		appLog.Error("api events: get failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		appLog.Error("api events: delete failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	s.invalidateLayouts()

	appLog.Info("event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// calendarResponse is the JSON shape of /api/calendar.
type calendarResponse struct {
	Month      string             `json:"month"`
	WeekStart  string             `json:"week_start"`
	TimeZone   string             `json:"timezone"`
	MaxRows    int                `json:"max_rows"`
	Palette    []string           `json:"palette"`
	Days       []dayDTO           `json:"days"`
	Placements []layout.Placement `json:"placements"`
	Segments   []segmentDTO       `json:"segments"`
	Overflow   []layout.Overflow  `json:"overflow"`
	Metrics    layout.Metrics     `json:"metrics"`
}

type dayDTO struct {
	Index   int    `json:"index"`
	Date    string `json:"date"`
	InMonth bool   `json:"in_month"`
	Hidden  int    `json:"hidden"`
}

type segmentDTO struct {
	layout.Segment
	Box layout.Box `json:"box"`
}

// handleCalendarJSON returns the month layout.
//
// GET /api/calendar?month=2025-03
func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Location()
	month, err := parseMonth(r.URL.Query().Get("month"), s.now(), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ml, err := s.monthLayout(r.Context(), month)
	if err != nil {
		appLog.Error("api calendar: layout failed", err, "month", month.Format(monthFormat))
		writeError(w, http.StatusInternalServerError, "failed to compute calendar")
		return
	}

	days := make([]dayDTO, 0, layout.Cells)
	for i, d := range ml.Grid.Days() {
		days = append(days, dayDTO{
			Index:   i,
			Date:    d.Format(dateFormat),
			InMonth: ml.Grid.InMonth(i),
			Hidden:  ml.Result.HiddenAt(i),
		})
	}

	metrics := layout.MetricsFor(s.cfg.MaxRows)
	segs := make([]segmentDTO, 0, len(ml.Segments))
	for _, seg := range ml.Segments {
		segs = append(segs, segmentDTO{Segment: seg, Box: metrics.Box(seg)})
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Month:      month.Format(monthFormat),
		WeekStart:  s.cfg.WeekStart,
		TimeZone:   loc.String(),
		MaxRows:    s.cfg.MaxRows,
		Palette:    s.cfg.Palette,
		Days:       days,
		Placements: ml.Result.Placements,
		Segments:   segs,
		Overflow:   ml.Result.Overflow,
		Metrics:    metrics,
	})
}
