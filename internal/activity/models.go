package activity

import (
	"encoding/json"
	"math"
	"strconv"

	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/shared/geo"
)

// Seconds is a canonical time in seconds since the Unix epoch. NaN marks a
// timestamp that could not be parsed.
type Seconds float64

// InvalidSeconds is the sentinel for an unparseable timestamp. It never
// satisfies a range comparison.
func InvalidSeconds() Seconds {
	return Seconds(math.NaN())
}

func (s Seconds) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'f', -1, 64), nil
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var v *float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*s = InvalidSeconds()
		return nil
	}
	*s = Seconds(*v)
	return nil
}

type Record struct {
	Index      int                `json:"index"`
	Timestamp  Seconds            `json:"ts"`
	DistanceKm *float64           `json:"distance_km,omitempty"`
	Fields     map[string]float64 `json:"fields"`
	Raw        decode.Attributes  `json:"-"`
}

// Field returns the named numeric attribute, or false when absent.
func (r Record) Field(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

type GPSPoint struct {
	Index     int     `json:"index"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp Seconds `json:"ts"`
}

// Snapshot is the immutable result of normalizing one file. It is replaced
// wholesale on the next upload.
type Snapshot struct {
	Name     string
	Format   string
	Records  []Record
	GPS      []GPSPoint
	Bounds   *geo.Bounds
	Fields   []string
	Laps     []decode.Attributes
	Sessions []decode.Attributes
	Start    Seconds
	End      Seconds
}

// HasGPS reports whether any record carried a valid position.
func (s *Snapshot) HasGPS() bool {
	return len(s.GPS) > 0
}
