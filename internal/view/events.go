package view

// RangeEvent is a drag-end on the chart. A nil bound signals reset.
type RangeEvent struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

func (e RangeEvent) IsReset() bool {
	return e.Start == nil || e.End == nil
}

// HoverEvent carries the record index under the chart cursor.
type HoverEvent struct {
	Index int `json:"index"`
}
