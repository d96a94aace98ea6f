package layout

// Segment is one rectangular band piece confined to a single week row.
// A placement spanning several weeks yields one segment per week; every
// segment carries the same Target so clicking any of them navigates alike.
type Segment struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Target  string `json:"target"`

	Week     int `json:"week"`      // 0..5
	StartCol int `json:"start_col"` // 0..6, inclusive
	EndCol   int `json:"end_col"`   // 0..6, inclusive
	Row      int `json:"row"`
	Color    int `json:"color"`

	// ContinuesLeft/Right are set when the event goes on past this
	// segment's edge (previous week, next week or outside the grid).
	ContinuesLeft  bool `json:"continues_left"`
	ContinuesRight bool `json:"continues_right"`
}

// Span returns the number of columns covered.
func (s Segment) Span() int { return s.EndCol - s.StartCol + 1 }

// Segments splits a placement into per-week segments: a partial first week,
// full intermediate weeks and a partial last week.
func Segments(p Placement) []Segment {
	startWeek, endWeek := p.Span.Start/DaysPerWeek, p.Span.End/DaysPerWeek

	out := make([]Segment, 0, endWeek-startWeek+1)
	for w := startWeek; w <= endWeek; w++ {
		seg := Segment{
			EventID:  p.Event.ID,
			Name:     p.Event.Name,
			Target:   p.Event.LinkTarget(),
			Week:     w,
			StartCol: 0,
			EndCol:   DaysPerWeek - 1,
			Row:      p.Row,
			Color:    p.Color,
		}
		if w == startWeek {
			seg.StartCol = p.Span.Start % DaysPerWeek
			seg.ContinuesLeft = p.Clip.ClippedStart
		} else {
			seg.ContinuesLeft = true
		}
		if w == endWeek {
			seg.EndCol = p.Span.End % DaysPerWeek
			seg.ContinuesRight = p.Clip.ClippedEnd
		} else {
			seg.ContinuesRight = true
		}
		out = append(out, seg)
	}
	return out
}

// SegmentsFor flattens the segments of all placements, in placement order.
func SegmentsFor(ps []Placement) []Segment {
	out := make([]Segment, 0, len(ps))
	for _, p := range ps {
		out = append(out, Segments(p)...)
	}
	return out
}

// Metrics is the pixel geometry of a rendered month grid. Each week row is
// WeekHeight tall and starts with a HeaderHeight day-number strip; below it,
// band row r occupies RowHeight pixels followed by RowGap.
type Metrics struct {
	WeekHeight   float64 `json:"week_height"`
	HeaderHeight float64 `json:"header_height"`
	RowHeight    float64 `json:"row_height"`
	RowGap       float64 `json:"row_gap"`
}

// DefaultMetrics fits three band rows plus a "+N more" line in a week row.
var DefaultMetrics = Metrics{
	WeekHeight:   120,
	HeaderHeight: 24,
	RowHeight:    20,
	RowGap:       4,
}

// MetricsFor returns DefaultMetrics with week rows tall enough for maxRows
// band rows plus the "+N more" line.
func MetricsFor(maxRows int) Metrics {
	m := DefaultMetrics
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if need := m.HeaderHeight + float64(maxRows+1)*(m.RowHeight+m.RowGap); need > m.WeekHeight {
		m.WeekHeight = need
	}
	return m
}

// MoreTop is the offset of the "+N more" line from the top of a week row.
func (m Metrics) MoreTop(maxRows int) float64 {
	return m.HeaderHeight + float64(maxRows)*(m.RowHeight+m.RowGap)
}

// Box is the position of a segment. Top and Height are pixels from the top
// of the grid, Left and Width are percentages of the grid width.
type Box struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// Box computes the rectangle for s.
func (m Metrics) Box(s Segment) Box {
	colWidth := 100.0 / DaysPerWeek
	return Box{
		Top:    float64(s.Week)*m.WeekHeight + m.HeaderHeight + float64(s.Row)*(m.RowHeight+m.RowGap),
		Height: m.RowHeight,
		Left:   float64(s.StartCol) * colWidth,
		Width:  float64(s.Span()) * colWidth,
	}
}

// GridHeight is the total pixel height of the six week rows.
func (m Metrics) GridHeight() float64 {
	return Weeks * m.WeekHeight
}
