package attendance

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"presence/internal/metrics"
	"presence/internal/presence"
)

const sourceName = "attendance"

// Record is one parsed row of the attendance source.
type Record struct {
	PersonID int
	Date     presence.Date
	presence.Presence
}

// Data maps person id to that person's timeline.
type Data map[int]presence.Timeline

// Timeline returns the timeline of id. Unknown ids get an empty, non-nil
// timeline and false.
func (d Data) Timeline(id int) (presence.Timeline, bool) {
	tl, ok := d[id]
	if !ok {
		return presence.Timeline{}, false
	}
	return tl, true
}

// PersonIDs returns every id with at least one record, ascending.
func (d Data) PersonIDs() []int {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Repository reads attendance records from a CSV file.
type Repository struct {
	path string
}

// NewRepository creates a repo over the CSV at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the source file location.
func (r *Repository) Path() string { return r.path }

// Load parses the whole source. Malformed rows are skipped; a missing or
// unreadable file returns an error wrapping presence.ErrSourceUnavailable.
func (r *Repository) Load(ctx context.Context) (Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open attendance %s: %w", presence.ErrSourceUnavailable, r.path, err)
	}
	defer f.Close()

	data, report, err := ParseRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read attendance %s: %w", presence.ErrSourceUnavailable, r.path, err)
	}
	for _, s := range report.Skipped {
		slog.Debug("skipped attendance row", "path", r.path, "line", s.Line, "reason", s.Reason)
	}
	metrics.RecordsSkipped.WithLabelValues(sourceName).Add(float64(len(report.Skipped)))
	metrics.SourceLoadSeconds.WithLabelValues(sourceName).Observe(time.Since(start).Seconds())
	slog.Info("attendance loaded", "path", r.path, "people", len(data), "rows", report.Accepted, "skipped", len(report.Skipped))
	return data, nil
}

// ParseRecords reads id,date,start,end rows. The first non-blank line is a
// header. Each physical line is parsed on its own, so a stray quote only costs
// its own line. Rows with the wrong field count or unparsable fields are
// reported and skipped; a later row for the same person and date replaces an
// earlier one. Only a failure of the underlying reader is returned as an error.
func ParseRecords(r io.Reader) (Data, presence.ParseReport, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	data := Data{}
	var report presence.ParseReport
	header := true
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		row, err := splitLine(text)
		if err != nil {
			report.Skipf(line, "%v", err)
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			report.Skipf(line, "%v", err)
			continue
		}
		tl, ok := data[rec.PersonID]
		if !ok {
			tl = presence.Timeline{}
			data[rec.PersonID] = tl
		}
		tl[rec.Date] = rec.Presence
		report.Accepted++
	}
	if err := sc.Err(); err != nil {
		return nil, report, err
	}
	return data, report, nil
}

// splitLine decodes a single line as one CSV record.
func splitLine(text string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	row, err := cr.Read()
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return nil, perr.Err
	}
	return row, err
}

func parseRow(row []string) (Record, error) {
	if len(row) != 4 {
		return Record{}, fmt.Errorf("want 4 fields, got %d", len(row))
	}
	id, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return Record{}, fmt.Errorf("person id %q: not a number", row[0])
	}
	date, err := presence.ParseDate(strings.TrimSpace(row[1]))
	if err != nil {
		return Record{}, err
	}
	start, err := presence.ParseTimeOfDay(strings.TrimSpace(row[2]))
	if err != nil {
		return Record{}, err
	}
	end, err := presence.ParseTimeOfDay(strings.TrimSpace(row[3]))
	if err != nil {
		return Record{}, err
	}
	return Record{PersonID: id, Date: date, Presence: presence.Presence{Start: start, End: end}}, nil
}
