// Package view turns selection changes into the payloads the map, chart and
// table views render.
package view

import (
	"sort"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/selection"
	"backend-trailscope/internal/shared/geo"
)

const (
	titleFull  = "Activity Summary"
	titleRange = "Selection Summary"
)

// Synchronizer consumes range and hover events for one snapshot. It is not
// safe for concurrent use.
type Synchronizer struct {
	snap      *activity.Snapshot
	machine   *selection.Machine
	highlight MapPayload
	last      Update
}

func NewSynchronizer(snap *activity.Snapshot) *Synchronizer {
	s := &Synchronizer{snap: snap, machine: selection.NewMachine(snap)}
	s.last = s.compute()
	s.last.Changed = true
	return s
}

func (s *Synchronizer) Snapshot() *activity.Snapshot {
	return s.snap
}

// Current is the last computed update.
func (s *Synchronizer) Current() Update {
	return s.last
}

// Apply handles a range event. A range matching no records leaves every
// view as it was and returns the previous update with Changed unset.
func (s *Synchronizer) Apply(ev RangeEvent) (Update, error) {
	if ev.IsReset() {
		s.machine.Reset()
		s.last = s.compute()
		s.last.Changed = true
		return s.last, nil
	}

	changed, err := s.machine.SelectRange(*ev.Start, *ev.End)
	if err != nil {
		return s.last, err
	}
	if !changed {
		out := s.last
		out.Changed = false
		return out, nil
	}

	s.last = s.compute()
	s.last.Changed = true
	return s.last, nil
}

// Hover finds the GPS point recorded for exactly ev.Index. Records without
// a position hide the marker.
func (s *Synchronizer) Hover(ev HoverEvent) Cursor {
	gps := s.snap.GPS
	i := sort.Search(len(gps), func(i int) bool { return gps[i].Index >= ev.Index })
	if i < len(gps) && gps[i].Index == ev.Index {
		return Cursor{Visible: true, Index: ev.Index, Lat: gps[i].Lat, Lon: gps[i].Lon}
	}
	return Cursor{Index: ev.Index}
}

func (s *Synchronizer) compute() Update {
	sel := s.machine.Current()
	subset := s.machine.Subset()

	u := Update{
		Selection: sel,
		Map:       s.mapPayload(sel),
		Summary:   Summary(s.snap.Fields, subset, sel.Full),
	}
	if !sel.Full {
		d := Detail(s.snap.Fields, subset)
		u.Detail = &d
	}
	return u
}

func (s *Synchronizer) mapPayload(sel selection.Selection) MapPayload {
	if !s.snap.HasGPS() {
		return MapPayload{Action: MapHidden, Points: []activity.GPSPoint{}}
	}
	if sel.Full {
		s.highlight = MapPayload{}
		return MapPayload{Action: MapFitFull, Points: []activity.GPSPoint{}, Bounds: s.snap.Bounds}
	}

	var points []activity.GPSPoint
	var bounds geo.Bounds
	for _, p := range s.snap.GPS {
		if !sel.Contains(p.Timestamp) {
			continue
		}
		if len(points) == 0 {
			bounds = geo.NewBounds(p.Lat, p.Lon)
		} else {
			bounds.Extend(p.Lat, p.Lon)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		keep := s.highlight
		keep.Action = MapKeep
		if keep.Points == nil {
			keep.Points = []activity.GPSPoint{}
		}
		return keep
	}

	s.highlight = MapPayload{Action: MapHighlight, Points: points, Bounds: &bounds}
	return s.highlight
}

// Summary aggregates a record subset: elapsed time and distance between the
// first and last records, and per field the mean over records carrying it.
func Summary(fields []string, subset []activity.Record, full bool) SummaryPayload {
	out := SummaryPayload{
		Title:    titleRange,
		Records:  len(subset),
		Averages: make([]FieldAverage, 0, len(fields)),
	}
	if full {
		out.Title = titleFull
	}

	var first, last activity.Seconds
	seen := false
	for _, r := range subset {
		if !r.Timestamp.Valid() {
			continue
		}
		if !seen {
			first = r.Timestamp
			seen = true
		}
		last = r.Timestamp
	}
	if seen {
		out.DurationSeconds = float64(last - first)
	}
	out.Duration = FormatDuration(out.DurationSeconds)

	if len(subset) > 0 {
		out.DistanceKm = distanceOrZero(subset[len(subset)-1]) - distanceOrZero(subset[0])
	}

	for _, f := range fields {
		avg := FieldAverage{Field: f, Label: FormatLabel(f)}
		sum := 0.0
		for _, r := range subset {
			if v, ok := r.Field(f); ok {
				sum += v
				avg.Count++
			}
		}
		if avg.Count > 0 {
			avg.Mean = sum / float64(avg.Count)
		}
		out.Averages = append(out.Averages, avg)
	}
	return out
}

// Detail lists a subset as display rows: time, distance and then one
// column per catalog field.
func Detail(fields []string, subset []activity.Record) DetailPayload {
	out := DetailPayload{
		Count:   len(subset),
		Columns: append([]string{"Time", "Dist"}, labels(fields)...),
		Indexes: make([]int, 0, len(subset)),
		Rows:    make([][]string, 0, len(subset)),
	}
	for _, r := range subset {
		row := make([]string, 0, len(fields)+2)
		row = append(row, formatClock(r.Timestamp))
		if r.DistanceKm != nil && *r.DistanceKm != 0 {
			row = append(row, formatFixed(*r.DistanceKm, 3))
		} else {
			row = append(row, placeholder)
		}
		for _, f := range fields {
			if v, ok := r.Field(f); ok {
				row = append(row, formatTenths(v))
			} else {
				row = append(row, placeholder)
			}
		}
		out.Indexes = append(out.Indexes, r.Index)
		out.Rows = append(out.Rows, row)
	}
	return out
}

func distanceOrZero(r activity.Record) float64 {
	if r.DistanceKm == nil {
		return 0
	}
	return *r.DistanceKm
}
