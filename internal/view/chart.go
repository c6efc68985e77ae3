package view

import (
	"backend-trailscope/internal/activity"
)

var palette = []string{
	"#2563eb",
	"#dc2626",
	"#d97706",
	"#059669",
	"#7c3aed",
	"#db2777",
}

// Chart builds one series per catalog field over the record timeline.
// Missing samples and invalid timestamps are nulls.
func Chart(snap *activity.Snapshot) ChartPayload {
	out := ChartPayload{
		X:      make([]*float64, len(snap.Records)),
		Series: make([]Series, 0, len(snap.Fields)),
	}
	for i, r := range snap.Records {
		if r.Timestamp.Valid() {
			ts := float64(r.Timestamp)
			out.X[i] = &ts
		}
	}
	for i, f := range snap.Fields {
		s := Series{
			Field: f,
			Label: FormatLabel(f),
			Color: palette[i%len(palette)],
			Y:     make([]*float64, len(snap.Records)),
		}
		for j, r := range snap.Records {
			if v, ok := r.Field(f); ok {
				s.Y[j] = &v
			}
		}
		out.Series = append(out.Series, s)
	}
	return out
}

// Trace is the full polyline drawn when a file loads.
func Trace(snap *activity.Snapshot) TracePayload {
	points := snap.GPS
	if points == nil {
		points = []activity.GPSPoint{}
	}
	return TracePayload{Points: points, Bounds: snap.Bounds}
}
