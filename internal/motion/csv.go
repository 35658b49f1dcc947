package motion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/banshee-data/stepcount/internal/monitoring"
)

// ErrEmptyCSV is returned when a recording has no rows after the header.
var ErrEmptyCSV = errors.New("motion: csv holds no sample rows")

// CSVRowError describes a row that could not be parsed as t,x,y,z.
type CSVRowError struct {
	Line int
	Err  error
}

func (e *CSVRowError) Error() string {
	return fmt.Sprintf("motion: csv line %d: %v", e.Line, e.Err)
}

func (e *CSVRowError) Unwrap() error { return e.Err }

// LoadCSV reads a recording from disk. See ReadCSV for the format.
func LoadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a recording whose first row is a header and whose
// remaining rows are t,x,y,z. Columns beyond the fourth are ignored. A
// malformed final row is treated as a truncated write and dropped; a
// malformed row anywhere else is an error.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	type row struct {
		line   int
		fields []string
	}
	var rows []row
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read recording: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row{line: line, fields: append([]string(nil), rec...)})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}

	samples := make([]Sample, 0, len(rows))
	for i, rw := range rows {
		s, err := parseRecord(rw.fields)
		if err != nil {
			if i == len(rows)-1 {
				monitoring.Debugf("[motion] dropping truncated trailing row at line %d: %v", rw.line, err)
				break
			}
			return nil, &CSVRowError{Line: rw.line, Err: err}
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyCSV
	}
	return samples, nil
}

func parseRecord(fields []string) (Sample, error) {
	if len(fields) < 4 {
		return Sample{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	var vals [4]float64
	for i := range vals {
		v, err := ParseValue(fields[i])
		if err != nil {
			return Sample{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return Sample{Timestamp: vals[0], X: vals[1], Y: vals[2], Z: vals[3]}, nil
}

func formatRecord(s Sample, rec []string) []string {
	rec = rec[:0]
	for _, v := range [...]float64{s.Timestamp, s.X, s.Y, s.Z} {
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return rec
}

// WriteCSV writes samples as header-less t,x,y,z rows.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	rec := make([]string, 0, 4)
	for _, s := range samples {
		rec = formatRecord(s, rec)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Recorder appends live samples to a CSV file. Rows have no header, which
// matches what the capture firmware writes; prepend one before replaying a
// recording with ReadCSV.
type Recorder struct {
	mu    sync.Mutex
	f     *os.File
	w     *csv.Writer
	rec   []string
	count int
}

// NewRecorder creates (or truncates) path.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &Recorder{f: f, w: csv.NewWriter(f), rec: make([]string, 0, 4)}, nil
}

// Record writes one sample. Rows are flushed every 100 samples and on Close.
func (r *Recorder) Record(s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec = formatRecord(s, r.rec)
	if err := r.w.Write(r.rec); err != nil {
		return err
	}
	r.count++
	if r.count%100 == 0 {
		r.w.Flush()
		return r.w.Error()
	}
	return nil
}

// Count is the number of samples recorded so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes pending rows and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
