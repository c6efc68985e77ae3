package view

import (
	"errors"
	"sort"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/decode"

	"github.com/maruel/natural"
)

const (
	DatasetRecords  = "records"
	DatasetLaps     = "laps"
	DatasetSessions = "sessions"

	explorerColumns = 15
)

var ErrUnknownDataset = errors.New("unknown explorer dataset")

var lapColumns = []string{"#", "Time", "Dist", "Avg HR", "Avg Spd", "Avg Pwr", "Avg Cad"}

// Laps formats the lap summaries of a snapshot.
func Laps(snap *activity.Snapshot) LapsPayload {
	out := LapsPayload{Columns: lapColumns, Rows: make([][]string, 0, len(snap.Laps))}
	for i, lap := range snap.Laps {
		elapsed, _ := activity.Numeric(lap["total_elapsed_time"])
		dist, _ := activity.Numeric(lap["total_distance"])

		spd := placeholder
		if v, ok := activity.Numeric(lap["avg_speed"]); ok && v != 0 {
			spd = formatFixed(v, 1)
		}

		hr, hrOK := activity.Numeric(lap["avg_heart_rate"])
		pwr, pwrOK := activity.Numeric(lap["avg_power"])
		cad, cadOK := activity.Numeric(lap["avg_cadence"])

		out.Rows = append(out.Rows, []string{
			formatFixed(float64(i+1), 0),
			FormatDuration(elapsed),
			formatFixed(dist, 2),
			formatRounded(hr, hrOK),
			spd,
			formatRounded(pwr, pwrOK),
			formatRounded(cad, cadOK),
		})
	}
	return out
}

// Explorer pages through the raw attribute bags of one dataset. page is
// 1-based; a page past the end has no rows.
func Explorer(snap *activity.Snapshot, dataset string, page, pageSize int) (ExplorerPage, error) {
	var rows []decode.Attributes
	switch dataset {
	case DatasetRecords:
		rows = make([]decode.Attributes, 0, len(snap.Records))
		for _, r := range snap.Records {
			rows = append(rows, r.Raw)
		}
	case DatasetLaps:
		rows = snap.Laps
	case DatasetSessions:
		rows = snap.Sessions
	default:
		return ExplorerPage{}, ErrUnknownDataset
	}

	if pageSize <= 0 {
		pageSize = 50
	}
	if page < 1 {
		page = 1
	}

	out := ExplorerPage{
		Dataset: dataset,
		Page:    page,
		Total:   len(rows),
		Pages:   (len(rows) + pageSize - 1) / pageSize,
		Columns: explorerKeys(rows),
		Rows:    [][]string{},
	}
	out.Labels = labels(out.Columns)

	if page > out.Pages {
		return out, nil
	}
	from := (page - 1) * pageSize
	to := min(from+pageSize, len(rows))
	for _, attrs := range rows[from:to] {
		row := make([]string, 0, len(out.Columns))
		for _, k := range out.Columns {
			row = append(row, formatValue(attrs[k]))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func explorerKeys(rows []decode.Attributes) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, attrs := range rows {
		for k := range attrs {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return natural.Less(keys[i], keys[j]) })
	if len(keys) > explorerColumns {
		keys = keys[:explorerColumns]
	}
	return keys
}
