package hostlog

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// serialColors maps board serial numbers to the sticker colors on the
// deployed sensors, used in CSV column names.
var serialColors = map[string]string{
	"0xEFCF86D7": "yellow",
	"0xF030D05B": "blue",
	"0xF030D0CF": "red",
}

// ColorFor returns the sticker color for a serial, or "unknown".
func ColorFor(serial string) string {
	if c, ok := serialColors[serial]; ok {
		return c
	}
	return "unknown"
}

// Filename builds the timestamped CSV path: <base>_YYYYMMDD_HHMMSS.csv.
func Filename(base string, now time.Time) string {
	return base + "_" + now.Format("20060102_150405") + ".csv"
}

// Header names the CSV columns for one board.
func Header(serial string) []string {
	color := ColorFor(serial)
	return []string{
		"timestamp",
		serial + "_" + color + "_temperature (degrees C)",
		serial + "_" + color + "_humidity (% rH)",
	}
}

// CSVSink appends records to a CSV file, flushing after every row so
// an interrupted run loses at most the row in flight.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates path, writes the header and returns the sink.
func NewCSVSink(path string, header []string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return &CSVSink{f: f, w: w}, nil
}

// Append writes one row. Humidity is clamped here; the Record keeps
// what the board printed.
func (s *CSVSink) Append(r Record) error {
	row := []string{
		strconv.FormatInt(r.TimestampMs, 10),
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.FormatFloat(DisplayHumidity(r.Humidity), 'f', -1, 64),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
