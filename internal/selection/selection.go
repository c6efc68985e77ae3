// Package selection owns the time-range selection for one loaded activity.
package selection

import (
	"errors"
	"math"

	"backend-trailscope/internal/activity"
)

var ErrInvalidRange = errors.New("selection start must not be after end")

// Selection is either FULL (no filtering has happened) or an inclusive
// [Start, End] range in epoch seconds. A range that happens to cover every
// record is still a range.
type Selection struct {
	Full  bool    `json:"full"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func Full() Selection {
	return Selection{Full: true}
}

func Range(start, end float64) Selection {
	return Selection{Start: start, End: end}
}

// Contains reports whether ts falls inside the selection. The invalid
// timestamp sentinel is only ever contained by FULL.
func (s Selection) Contains(ts activity.Seconds) bool {
	if s.Full {
		return true
	}
	t := float64(ts)
	return t >= s.Start && t <= s.End
}

// Subset returns the records the selection covers, in record order.
func Subset(records []activity.Record, sel Selection) []activity.Record {
	if sel.Full {
		return records
	}
	out := make([]activity.Record, 0)
	for _, r := range records {
		if sel.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	return out
}

// Machine is the FULL <-> RANGE state machine for a single snapshot.
type Machine struct {
	records []activity.Record
	current Selection
}

func NewMachine(snap *activity.Snapshot) *Machine {
	return &Machine{records: snap.Records, current: Full()}
}

func (m *Machine) Current() Selection {
	return m.current
}

// SelectRange moves to RANGE(start, end). A range that matches no records is
// rejected without changing state; changed reports whether a transition
// happened.
func (m *Machine) SelectRange(start, end float64) (changed bool, err error) {
	if math.IsNaN(start) || math.IsNaN(end) || start > end {
		return false, ErrInvalidRange
	}
	next := Range(start, end)
	for _, r := range m.records {
		if next.Contains(r.Timestamp) {
			m.current = next
			return true, nil
		}
	}
	return false, nil
}

func (m *Machine) Reset() {
	m.current = Full()
}

// Subset is the record subset for the current state.
func (m *Machine) Subset() []activity.Record {
	return Subset(m.records, m.current)
}
