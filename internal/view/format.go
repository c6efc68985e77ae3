package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"backend-trailscope/internal/activity"
)

const placeholder = "-"

var labelAbbreviations = strings.NewReplacer(
	"Heart Rate", "HR",
	"Cadence", "Cad",
	"Altitude", "Alt",
)

// FormatLabel turns an attribute name into a column label:
// "heart_rate" becomes "HR", "enhanced_altitude" becomes "Enhanced Alt".
func FormatLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return labelAbbreviations.Replace(strings.Join(words, " "))
}

func labels(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, FormatLabel(f))
	}
	return out
}

// FormatDuration renders seconds as m:ss. Zero reads as "-".
func FormatDuration(seconds float64) string {
	if seconds == 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return placeholder
	}
	minutes := math.Floor(seconds / 60)
	rest := math.Floor(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", int64(minutes), int64(rest))
}

func formatClock(ts activity.Seconds) string {
	if !ts.Valid() {
		return placeholder
	}
	sec, frac := math.Modf(float64(ts))
	return time.Unix(int64(sec), int64(frac*1e9)).UTC().Format("15:04:05")
}

func formatFixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// formatTenths rounds to one decimal and drops a trailing ".0".
func formatTenths(v float64) string {
	r := math.Round(v*10) / 10
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func formatRounded(v float64, ok bool) string {
	if !ok || v == 0 {
		return placeholder
	}
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return placeholder
	case time.Time:
		if t.IsZero() {
			return placeholder
		}
		return t.UTC().Format(time.RFC3339)
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if f, ok := activity.Numeric(v); ok {
		return formatTenths(f)
	}
	return fmt.Sprint(v)
}
