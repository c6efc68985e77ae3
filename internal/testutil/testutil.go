// Package testutil builds synthetic activities shared by package tests.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"backend-trailscope/internal/decode"
)

// Track returns n one-second samples starting at the Unix epoch, each with a
// timestamp, a position and a distance. fn may add or remove attributes.
func Track(n int, fn func(i int, attrs decode.Attributes)) decode.RawActivity {
	raw := decode.RawActivity{Format: "json", Records: make([]decode.Attributes, 0, n)}
	for i := 0; i < n; i++ {
		attrs := decode.Attributes{
			"timestamp":     time.Unix(int64(i), 0).UTC(),
			"position_lat":  10 + float64(i)*0.001,
			"position_long": 20 + float64(i)*0.001,
			"distance":      float64(i) * 0.01,
		}
		if fn != nil {
			fn(i, attrs)
		}
		raw.Records = append(raw.Records, attrs)
	}
	return raw
}

// ScenarioA is 100 records over 0..99s with heart_rate on every record and
// power only on even indices.
func ScenarioA() decode.RawActivity {
	return Track(100, func(i int, attrs decode.Attributes) {
		attrs["heart_rate"] = float64(100 + i)
		if i%2 == 0 {
			attrs["power"] = float64(200 + i)
		}
	})
}

// ExportJSON renders raw in the JSON export format, with RFC 3339 timestamps.
func ExportJSON(t *testing.T, raw decode.RawActivity) []byte {
	t.Helper()

	doc := map[string]any{
		"records":  raw.Records,
		"laps":     raw.Laps,
		"sessions": raw.Sessions,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal export: %v", err)
	}
	return data
}
