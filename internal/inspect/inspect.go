// Package inspect prints activity files to a terminal using the same
// decode, selection and summary code as the HTTP server.
package inspect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/selection"
	"backend-trailscope/internal/view"

	"github.com/hako/durafmt"
	"github.com/pterm/pterm"
)

// Options selects what to print. Start and End are offsets in seconds from
// the first valid timestamp; nil means the edge of the activity.
type Options struct {
	Start  *float64
	End    *float64
	Laps   bool
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) ranged() bool {
	return o.Start != nil || o.End != nil
}

// RangeError is a --start/--end pair that selects backwards. It wraps
// selection.ErrInvalidRange.
type RangeError struct {
	Reason string
}

func (e *RangeError) Error() string { return e.Reason }

func (e *RangeError) Unwrap() error { return selection.ErrInvalidRange }

func rangeError(opts Options, span float64) error {
	switch {
	case opts.End == nil:
		return &RangeError{Reason: fmt.Sprintf("--start %s is past the end of the activity (%s)", humanize(*opts.Start), humanize(span))}
	case opts.Start == nil:
		return &RangeError{Reason: "--end must not be before the start of the activity"}
	}
	return &RangeError{Reason: "--start must not be after --end"}
}

// Report is the analysis of one file.
type Report struct {
	Snapshot  *activity.Snapshot
	Selection selection.Selection
	// Fallback is set when the requested range matched no records.
	Fallback bool
	Summary  view.SummaryPayload
	Laps     view.LapsPayload
}

func Analyze(registry *decode.Registry, name string, data []byte, opts Options) (Report, error) {
	raw, err := registry.Decode(name, data)
	if err != nil {
		return Report{}, err
	}
	snap, err := activity.Normalize(name, raw)
	if err != nil {
		return Report{}, err
	}

	r := Report{Snapshot: snap, Selection: selection.Full(), Laps: view.Laps(snap)}
	m := selection.NewMachine(snap)

	if opts.ranged() {
		if !snap.Start.Valid() {
			return Report{}, fmt.Errorf("%s: no valid timestamps to offset from", name)
		}
		start, end := float64(snap.Start), float64(snap.End)
		if opts.Start != nil {
			start = float64(snap.Start) + *opts.Start
		}
		if opts.End != nil {
			end = float64(snap.Start) + *opts.End
		}

		changed, err := m.SelectRange(start, end)
		if errors.Is(err, selection.ErrInvalidRange) {
			return Report{}, rangeError(opts, float64(snap.End-snap.Start))
		}
		if err != nil {
			return Report{}, err
		}
		r.Fallback = !changed
		r.Selection = m.Current()
	}

	r.Summary = view.Summary(snap.Fields, m.Subset(), r.Selection.Full)
	return r, nil
}

// Run analyzes and prints every file. A file that fails is reported and
// skipped; the returned error says how many failed.
func Run(registry *decode.Registry, files []string, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	failed := 0
	for _, path := range files {
		if err := runFile(registry, path, opts); err != nil {
			pterm.Error.WithWriter(opts.Stderr).Printfln("%s: %s", path, err.Error())
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be inspected", failed, len(files))
	}
	return nil
}

func runFile(registry *decode.Registry, path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r, err := Analyze(registry, path, data, opts)
	if err != nil {
		return err
	}

	if r.Fallback {
		pterm.Warning.WithWriter(opts.Stderr).Printfln("%s: no records in the requested range, showing the whole activity", path)
	}
	return Render(opts.Stdout, r, opts.Laps)
}

func Render(w io.Writer, r Report, withLaps bool) error {
	snap := r.Snapshot

	fmt.Fprintln(w, pterm.Bold.Sprint(snap.Name))
	if err := printTable(w, overview(r)); err != nil {
		return err
	}

	fmt.Fprintln(w, pterm.Bold.Sprint(r.Summary.Title))
	if err := printTable(w, summaryRows(r.Summary)); err != nil {
		return err
	}

	if withLaps && len(r.Laps.Rows) > 0 {
		fmt.Fprintln(w, pterm.Bold.Sprint("Laps"))
		data := append([][]string{r.Laps.Columns}, r.Laps.Rows...)
		if err := printTable(w, data); err != nil {
			return err
		}
	}
	return nil
}

func printTable(w io.Writer, data [][]string) error {
	table := pterm.DefaultTable
	table.Boxed = true

	str, err := table.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(w, str)
	return nil
}

func overview(r Report) [][]string {
	snap := r.Snapshot

	bounds := "-"
	if snap.Bounds != nil {
		b := snap.Bounds
		bounds = fmt.Sprintf("%.5f,%.5f .. %.5f,%.5f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	}

	span := "-"
	if snap.Start.Valid() {
		span = humanize(float64(snap.End - snap.Start))
	}

	sel := "full activity"
	if !r.Selection.Full {
		sel = fmt.Sprintf("+%s .. +%s",
			humanize(r.Selection.Start-float64(snap.Start)),
			humanize(r.Selection.End-float64(snap.Start)))
	}

	return [][]string{
		{"FIELD", "VALUE"},
		{"Format", snap.Format},
		{"Records", strconv.Itoa(len(snap.Records))},
		{"GPS points", strconv.Itoa(len(snap.GPS))},
		{"Bounds", bounds},
		{"Span", span},
		{"Selection", sel},
		{"Laps", strconv.Itoa(len(snap.Laps))},
		{"Fields", strings.Join(snap.Fields, ", ")},
	}
}

func summaryRows(s view.SummaryPayload) [][]string {
	header := []string{"Records", "Duration", "Distance"}
	row := []string{
		strconv.Itoa(s.Records),
		humanize(s.DurationSeconds),
		fmt.Sprintf("%.2f km", s.DistanceKm),
	}
	for _, avg := range s.Averages {
		header = append(header, "Avg "+avg.Label)
		if avg.Count == 0 {
			row = append(row, "-")
			continue
		}
		row = append(row, strconv.FormatFloat(avg.Mean, 'f', 1, 64))
	}
	return [][]string{header, row}
}

func humanize(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return durafmt.Parse(d).LimitFirstN(2).String()
}
