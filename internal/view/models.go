package view

import (
	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/selection"
	"backend-trailscope/internal/shared/geo"
)

type MapAction string

const (
	MapHidden    MapAction = "hidden"
	MapFitFull   MapAction = "fit_full"
	MapHighlight MapAction = "highlight"
	MapKeep      MapAction = "keep"
)

type MapPayload struct {
	Action MapAction           `json:"action"`
	Points []activity.GPSPoint `json:"points"`
	Bounds *geo.Bounds         `json:"bounds,omitempty"`
}

type FieldAverage struct {
	Field string  `json:"field"`
	Label string  `json:"label"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

type SummaryPayload struct {
	Title           string         `json:"title"`
	Records         int            `json:"records"`
	DurationSeconds float64        `json:"duration_seconds"`
	Duration        string         `json:"duration"`
	DistanceKm      float64        `json:"distance_km"`
	Averages        []FieldAverage `json:"averages"`
}

// Mean returns the average for field, if it is in the catalog.
func (s SummaryPayload) Mean(field string) (FieldAverage, bool) {
	for _, a := range s.Averages {
		if a.Field == field {
			return a, true
		}
	}
	return FieldAverage{}, false
}

type DetailPayload struct {
	Count   int        `json:"count"`
	Columns []string   `json:"columns"`
	Indexes []int      `json:"indexes"`
	Rows    [][]string `json:"rows"`
}

// Update is everything the views need after a range event.
type Update struct {
	Selection selection.Selection `json:"selection"`
	Changed   bool                `json:"changed"`
	Map       MapPayload          `json:"map"`
	Summary   SummaryPayload      `json:"summary"`
	Detail    *DetailPayload      `json:"detail,omitempty"`
}

type Cursor struct {
	Visible bool    `json:"visible"`
	Index   int     `json:"index"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

type Series struct {
	Field string     `json:"field"`
	Label string     `json:"label"`
	Color string     `json:"color"`
	Y     []*float64 `json:"y"`
}

type ChartPayload struct {
	X      []*float64 `json:"x"`
	Series []Series   `json:"series"`
}

type TracePayload struct {
	Points []activity.GPSPoint `json:"points"`
	Bounds *geo.Bounds         `json:"bounds,omitempty"`
}

type LapsPayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type ExplorerPage struct {
	Dataset string     `json:"dataset"`
	Page    int        `json:"page"`
	Pages   int        `json:"pages"`
	Total   int        `json:"total"`
	Columns []string   `json:"columns"`
	Labels  []string   `json:"labels"`
	Rows    [][]string `json:"rows"`
}
