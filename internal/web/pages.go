package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"volcal/internal/events"
	"volcal/internal/layout"
	appLog "volcal/internal/log"
	"volcal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"pathEscape": url.PathEscape,
}).ParseFS(templateFS, "templates/*.html"))

// eventLookbehind and eventLookahead bound the search for an event page.
const (
	eventLookbehind = 365
	eventLookahead  = 365
)

type calendarPage struct {
	Title     string
	Month     string
	PrevMonth string
	NextMonth string
	Weekdays  []string
	Weeks     [][]dayCell
	Bands     []bandView
	Height    float64
	WeekPx    float64
	HeaderPx  float64
}

type dayCell struct {
	Day     int
	Date    string
	InMonth bool
	Today   bool
	Hidden  int
	// MoreTop is the pixel offset of the "+N more" label inside the week row.
	MoreTop float64
}

type bandView struct {
	Name           string
	Target         string
	Color          string
	Box            layout.Box
	ContinuesLeft  bool
	ContinuesRight bool
}

// handleCalendarPage renders the month grid with its event bands.
//
// GET /calendar?month=2025-03
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Location()
	month, err := parseMonth(r.URL.Query().Get("month"), s.now(), loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ml, err := s.monthLayout(r.Context(), month)
	if err != nil {
		appLog.Error("calendar page: layout failed", err, "month", month.Format(monthFormat))
		http.Error(w, "failed to compute calendar", http.StatusInternalServerError)
		return
	}

	s.renderPage(w, "calendar.html", s.calendarView(ml, month))
}

func (s *Server) calendarView(ml events.MonthLayout, month time.Time) calendarPage {
	m := layout.MetricsFor(s.cfg.MaxRows)
	today := layout.DayOf(s.now(), s.svc.Location())
	moreTop := m.MoreTop(s.cfg.MaxRows)

	page := calendarPage{
		Title:     month.Format("January 2006"),
		Month:     month.Format(monthFormat),
		PrevMonth: month.AddDate(0, -1, 0).Format(monthFormat),
		NextMonth: month.AddDate(0, 1, 0).Format(monthFormat),
		Weeks:     make([][]dayCell, layout.Weeks),
		Height:    m.GridHeight(),
		WeekPx:    m.WeekHeight,
		HeaderPx:  m.HeaderHeight,
	}
	for i := range layout.DaysPerWeek {
		page.Weekdays = append(page.Weekdays, ml.Grid.At(i).Weekday().String()[:3])
	}
	for i, d := range ml.Grid.Days() {
		week := i / layout.DaysPerWeek
		page.Weeks[week] = append(page.Weeks[week], dayCell{
			Day:     d.Day(),
			Date:    d.Format(dateFormat),
			InMonth: ml.Grid.InMonth(i),
			Today:   d.Equal(today),
			Hidden:  ml.Result.HiddenAt(i),
			MoreTop: moreTop,
		})
	}
	for _, seg := range ml.Segments {
		page.Bands = append(page.Bands, bandView{
			Name:           seg.Name,
			Target:         seg.Target,
			Color:          s.paletteColor(seg.Color),
			Box:            m.Box(seg),
			ContinuesLeft:  seg.ContinuesLeft,
			ContinuesRight: seg.ContinuesRight,
		})
	}
	return page
}

func (s *Server) paletteColor(slot int) string {
	if len(s.cfg.Palette) == 0 {
		return "#888888"
	}
	return s.cfg.Palette[slot%len(s.cfg.Palette)]
}

type eventPage struct {
	Target string
	Events []model.CalendarEvent
}

// handleEventPage is the click-through destination of a band.
func (s *Server) handleEventPage(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("target")
	today := layout.DayOf(s.now(), s.svc.Location())

	evs, err := s.svc.Find(r.Context(), target,
		today.AddDate(0, 0, -eventLookbehind), today.AddDate(0, 0, eventLookahead))
	if err != nil {
		appLog.Error("event page: lookup failed", err, "target", target)
		http.Error(w, "failed to load event", http.StatusInternalServerError)
		return
	}
	if len(evs) == 0 {
		http.NotFound(w, r)
		return
	}

	s.renderPage(w, "event.html", eventPage{Target: target, Events: evs})
}

// renderPage executes into a buffer so template errors still produce a 500.
func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
