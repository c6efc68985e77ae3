// Package activity turns decoder output into the immutable record model that
// selection and view payloads are computed from.
package activity

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/shared/geo"

	"github.com/araddon/dateparse"
)

// ErrMissingRecords is returned when decoding succeeded but the structure has
// no records sequence.
var ErrMissingRecords = errors.New("decoded file has no records sequence")

// Attributes that are never chart fields. Distance is kept on Record itself.
var excludedFields = map[string]struct{}{
	"timestamp":     {},
	"position_lat":  {},
	"position_long": {},
	"timer_time":    {},
	"elapsed_time":  {},
	"distance":      {},
}

// Normalize builds a Snapshot from a decoded file. Individual bad samples
// never fail the file: an unparseable timestamp becomes the invalid sentinel
// and an invalid position is simply left out of the GPS index.
func Normalize(name string, raw decode.RawActivity) (*Snapshot, error) {
	if raw.Records == nil {
		return nil, ErrMissingRecords
	}

	snap := &Snapshot{
		Name:     name,
		Format:   raw.Format,
		Records:  make([]Record, 0, len(raw.Records)),
		GPS:      []GPSPoint{},
		Fields:   []string{},
		Laps:     nonNil(raw.Laps),
		Sessions: nonNil(raw.Sessions),
		Start:    InvalidSeconds(),
		End:      InvalidSeconds(),
	}

	fieldSet := map[string]struct{}{}
	for i, attrs := range raw.Records {
		rec := Record{
			Index:     i,
			Timestamp: CanonicalSeconds(attrs["timestamp"]),
			Fields:    map[string]float64{},
			Raw:       attrs,
		}
		if d, ok := Numeric(attrs["distance"]); ok {
			rec.DistanceKm = &d
		}

		for key, value := range attrs {
			if _, skip := excludedFields[key]; skip {
				continue
			}
			if v, ok := Numeric(value); ok {
				rec.Fields[key] = v
				fieldSet[key] = struct{}{}
			}
		}

		if lat, lon, ok := position(attrs); ok {
			snap.GPS = append(snap.GPS, GPSPoint{Index: i, Lat: lat, Lon: lon, Timestamp: rec.Timestamp})
			if snap.Bounds == nil {
				b := geo.NewBounds(lat, lon)
				snap.Bounds = &b
			} else {
				snap.Bounds.Extend(lat, lon)
			}
		}

		if ts := rec.Timestamp; ts.Valid() {
			if !snap.Start.Valid() || ts < snap.Start {
				snap.Start = ts
			}
			if !snap.End.Valid() || ts > snap.End {
				snap.End = ts
			}
		}

		snap.Records = append(snap.Records, rec)
	}

	for key := range fieldSet {
		snap.Fields = append(snap.Fields, key)
	}
	sort.Strings(snap.Fields)

	return snap, nil
}

// CanonicalSeconds converts a raw timestamp attribute into epoch seconds.
// Native times, date strings (parsed as UTC when no zone is given) and epoch
// milliseconds are accepted; anything else yields the invalid sentinel.
func CanonicalSeconds(v any) Seconds {
	switch t := v.(type) {
	case time.Time:
		return timeSeconds(t)
	case *time.Time:
		if t == nil {
			return InvalidSeconds()
		}
		return timeSeconds(*t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return InvalidSeconds()
		}
		parsed, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return InvalidSeconds()
		}
		return timeSeconds(parsed)
	}
	if ms, ok := Numeric(v); ok {
		return Seconds(ms / 1000)
	}
	return InvalidSeconds()
}

func timeSeconds(t time.Time) Seconds {
	if t.IsZero() {
		return InvalidSeconds()
	}
	return Seconds(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
}

// Numeric reports whether v is a finite number of any Go numeric kind.
func Numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func position(attrs decode.Attributes) (float64, float64, bool) {
	lat, ok := Numeric(attrs["position_lat"])
	if !ok {
		return 0, 0, false
	}
	lon, ok := Numeric(attrs["position_long"])
	if !ok {
		return 0, 0, false
	}
	if !geo.ValidCoordinate(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

func nonNil(bags []decode.Attributes) []decode.Attributes {
	if bags == nil {
		return []decode.Attributes{}
	}
	return bags
}
