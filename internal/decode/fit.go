package decode

import (
	"bytes"
	"math"
	"time"

	"github.com/tormoder/fit"
)

const (
	metersPerKm = 1000.0
	mpsToKmh    = 3.6
)

// FITDecoder reads Garmin FIT activity files. Units follow the browser
// parser the front-end was built against: km, km/h, metres for altitude.
type FITDecoder struct{}

func (FITDecoder) Format() string { return "fit" }

func (FITDecoder) Decode(data []byte) (RawActivity, error) {
	file, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return RawActivity{}, &Error{Format: "fit", Err: err}
	}

	act, err := file.Activity()
	if err != nil {
		// Well-formed FIT, but not an activity: no records sequence.
		return RawActivity{Format: "fit"}, nil
	}

	raw := RawActivity{
		Format:   "fit",
		Records:  make([]Attributes, 0, len(act.Records)),
		Laps:     make([]Attributes, 0, len(act.Laps)),
		Sessions: make([]Attributes, 0, len(act.Sessions)),
	}
	for _, rec := range act.Records {
		if rec != nil {
			raw.Records = append(raw.Records, fitRecordAttributes(rec))
		}
	}
	for _, lap := range act.Laps {
		if lap != nil {
			raw.Laps = append(raw.Laps, fitLapAttributes(lap))
		}
	}
	for _, s := range act.Sessions {
		if s != nil {
			raw.Sessions = append(raw.Sessions, fitSessionAttributes(s))
		}
	}
	return raw, nil
}

func fitRecordAttributes(rec *fit.RecordMsg) Attributes {
	attrs := Attributes{"timestamp": fitTime(rec.Timestamp)}

	if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
		attrs["position_lat"] = rec.PositionLat.Degrees()
		attrs["position_long"] = rec.PositionLong.Degrees()
	}

	setFloat(attrs, "distance", rec.GetDistanceScaled()/metersPerKm)
	setFloat(attrs, "speed", rec.GetSpeedScaled()*mpsToKmh)
	setFloat(attrs, "enhanced_speed", rec.GetEnhancedSpeedScaled()*mpsToKmh)
	setFloat(attrs, "altitude", rec.GetAltitudeScaled())
	setFloat(attrs, "enhanced_altitude", rec.GetEnhancedAltitudeScaled())
	setFloat(attrs, "grade", rec.GetGradeScaled())
	setUint8(attrs, "heart_rate", rec.HeartRate)
	setUint8(attrs, "cadence", rec.Cadence)
	setUint16(attrs, "power", rec.Power)
	setUint16(attrs, "calories", rec.Calories)
	if rec.Temperature != math.MaxInt8 {
		attrs["temperature"] = float64(rec.Temperature)
	}
	return attrs
}

// fitSummary is the subset of lap and session fields shown in summary tables.
type fitSummary struct {
	start, end         time.Time
	elapsed, timer     float64
	distanceM          float64
	avgSpeed, maxSpeed float64
	avgHR, maxHR       uint8
	avgCadence         uint8
	avgPower, maxPower uint16
	calories           uint16
	ascent, descent    uint16
}

func (s fitSummary) attributes() Attributes {
	attrs := Attributes{
		"start_time": fitTime(s.start),
		"timestamp":  fitTime(s.end),
	}
	setFloat(attrs, "total_elapsed_time", s.elapsed)
	setFloat(attrs, "total_timer_time", s.timer)
	setFloat(attrs, "total_distance", s.distanceM/metersPerKm)
	setFloat(attrs, "avg_speed", s.avgSpeed*mpsToKmh)
	setFloat(attrs, "max_speed", s.maxSpeed*mpsToKmh)
	setUint8(attrs, "avg_heart_rate", s.avgHR)
	setUint8(attrs, "max_heart_rate", s.maxHR)
	setUint8(attrs, "avg_cadence", s.avgCadence)
	setUint16(attrs, "avg_power", s.avgPower)
	setUint16(attrs, "max_power", s.maxPower)
	setUint16(attrs, "total_calories", s.calories)
	setUint16(attrs, "total_ascent", s.ascent)
	setUint16(attrs, "total_descent", s.descent)
	return attrs
}

func fitLapAttributes(lap *fit.LapMsg) Attributes {
	return fitSummary{
		start:      lap.StartTime,
		end:        lap.Timestamp,
		elapsed:    lap.GetTotalElapsedTimeScaled(),
		timer:      lap.GetTotalTimerTimeScaled(),
		distanceM:  lap.GetTotalDistanceScaled(),
		avgSpeed:   lap.GetAvgSpeedScaled(),
		maxSpeed:   lap.GetMaxSpeedScaled(),
		avgHR:      lap.AvgHeartRate,
		maxHR:      lap.MaxHeartRate,
		avgCadence: lap.AvgCadence,
		avgPower:   lap.AvgPower,
		maxPower:   lap.MaxPower,
		calories:   lap.TotalCalories,
		ascent:     lap.TotalAscent,
		descent:    lap.TotalDescent,
	}.attributes()
}

func fitSessionAttributes(s *fit.SessionMsg) Attributes {
	attrs := fitSummary{
		start:      s.StartTime,
		end:        s.Timestamp,
		elapsed:    s.GetTotalElapsedTimeScaled(),
		timer:      s.GetTotalTimerTimeScaled(),
		distanceM:  s.GetTotalDistanceScaled(),
		avgSpeed:   s.GetAvgSpeedScaled(),
		maxSpeed:   s.GetMaxSpeedScaled(),
		avgHR:      s.AvgHeartRate,
		maxHR:      s.MaxHeartRate,
		avgCadence: s.AvgCadence,
		avgPower:   s.AvgPower,
		maxPower:   s.MaxPower,
		calories:   s.TotalCalories,
		ascent:     s.TotalAscent,
		descent:    s.TotalDescent,
	}.attributes()
	attrs["sport"] = s.Sport.String()
	return attrs
}

func fitTime(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func setFloat(attrs Attributes, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	attrs[key] = v
}

func setUint8(attrs Attributes, key string, v uint8) {
	if v != math.MaxUint8 {
		attrs[key] = float64(v)
	}
}

func setUint16(attrs Attributes, key string, v uint16) {
	if v != math.MaxUint16 {
		attrs[key] = float64(v)
	}
}
