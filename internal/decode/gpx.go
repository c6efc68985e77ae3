package decode

import (
	"backend-trailscope/internal/shared/geo"

	"github.com/tkrajina/gpxgo/gpx"
)

// GPXDecoder flattens every track point of every segment into a record.
// GPX carries no distance field, so a cumulative one is derived.
type GPXDecoder struct{}

func (GPXDecoder) Format() string { return "gpx" }

func (GPXDecoder) Decode(data []byte) (RawActivity, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return RawActivity{}, &Error{Format: "gpx", Err: err}
	}

	raw := RawActivity{
		Format:   "gpx",
		Records:  []Attributes{},
		Laps:     []Attributes{},
		Sessions: []Attributes{},
	}

	var (
		distanceKm       float64
		prevLat, prevLon float64
		havePrev         bool
	)
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, point := range segment.Points {
				attrs := Attributes{
					"timestamp":     point.Timestamp,
					"position_lat":  point.Latitude,
					"position_long": point.Longitude,
				}
				if point.Elevation.NotNull() {
					attrs["altitude"] = point.Elevation.Value()
				}

				if geo.ValidCoordinate(point.Latitude, point.Longitude) {
					if havePrev {
						distanceKm += geo.HaversineKm(prevLat, prevLon, point.Latitude, point.Longitude)
					}
					prevLat, prevLon, havePrev = point.Latitude, point.Longitude, true
				}
				attrs["distance"] = distanceKm

				raw.Records = append(raw.Records, attrs)
			}
		}
	}
	return raw, nil
}
