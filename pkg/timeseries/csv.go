package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
)

// DateColumn is the header of the timestamp column in transect CSV files.
const DateColumn = "date"

// Export column headers.
const (
	exportDateColumn  = "dates"
	exportValueColumn = "cross_distance"
)

// lz4Suffix marks files that are transparently (de)compressed.
const lz4Suffix = ".lz4"

// DateLayouts are the timestamp layouts accepted in the date column,
// tried in order.
var DateLayouts = []string{
	"2006-01-02 15:04:05+00:00",
	"01/02/2006",
	"2006-01-02",
	time.RFC3339,
}

// Sentinel errors for CSV ingestion.
var (
	ErrNoDateColumn    = errors.New("csv has no date column")
	ErrUnknownTransect = errors.New("transect column not found")
	ErrBadDate         = errors.New("unparseable date")
	ErrBadValue        = errors.New("unparseable position value")
)

// TransectTable is a parsed transect_time_series CSV: one shared date axis
// and one position column per transect id. Rows are sorted by date.
type TransectTable struct {
	Dates     []time.Time
	Transects []string
	columns   map[string][]float64
}

// ParseDate parses a date cell using the first matching layout in DateLayouts.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range DateLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, raw)
}

// ReadTransectFile opens path (lz4-compressed if it ends in .lz4) and parses it.
func ReadTransectFile(path string) (*TransectTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, lz4Suffix) {
		r = lz4.NewReader(file)
	}

	table, err := ReadTransects(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return table, nil
}

// ReadTransects parses a transect CSV. Empty cells and "nan" become NaN.
// Columns other than the date column are treated as transects, except a
// leading unnamed index column.
func ReadTransects(r io.Reader) (*TransectTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx := -1
	transectIdx := make(map[int]string)

	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))

		switch {
		case h == DateColumn:
			dateIdx = i
		case h == "":
		default:
			transectIdx[i] = h
		}
	}

	if dateIdx < 0 {
		return nil, ErrNoDateColumn
	}

	type row struct {
		date   time.Time
		values map[string]float64
	}

	var rows []row

	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, readErr)
		}

		date, dateErr := ParseDate(record[dateIdx])
		if dateErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, dateErr)
		}

		values := make(map[string]float64, len(transectIdx))

		for idx, name := range transectIdx {
			v, parseErr := parseCell(record[idx])
			if parseErr != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, parseErr)
			}

			values[name] = v
		}

		rows = append(rows, row{date: date, values: values})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	table := &TransectTable{
		Dates:   make([]time.Time, len(rows)),
		columns: make(map[string][]float64, len(transectIdx)),
	}

	for _, name := range transectIdx {
		table.Transects = append(table.Transects, name)
		table.columns[name] = make([]float64, len(rows))
	}

	slices.Sort(table.Transects)

	for i, parsed := range rows {
		table.Dates[i] = parsed.date

		for name, v := range parsed.values {
			table.columns[name][i] = v
		}
	}

	return table, nil
}

func parseCell(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return math.NaN(), nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, raw)
	}

	return v, nil
}

// Series extracts one transect as a Series with missing rows removed.
func (t *TransectTable) Series(transect string) (*Series, error) {
	values, ok := t.columns[transect]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransect, transect)
	}

	s, err := New(transect, t.Dates, values)
	if err != nil {
		return nil, err
	}

	return s.DropMissing(), nil
}

// WriteFile writes the series to path in export layout, lz4-compressed when
// the path ends in .lz4.
func (s *Series) WriteFile(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	if !strings.HasSuffix(path, lz4Suffix) {
		return s.WriteCSV(file)
	}

	zw := lz4.NewWriter(file)

	writeErr := s.WriteCSV(zw)
	if writeErr != nil {
		return writeErr
	}

	return zw.Close()
}

// WriteCSV writes the series as "dates,cross_distance" rows with RFC3339 dates.
// Missing values are written as empty cells.
func (s *Series) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	writeErr := writer.Write([]string{exportDateColumn, exportValueColumn})
	if writeErr != nil {
		return fmt.Errorf("write header: %w", writeErr)
	}

	for i, ts := range s.Timestamps {
		cell := ""
		if !math.IsNaN(s.Values[i]) {
			cell = strconv.FormatFloat(s.Values[i], 'f', -1, 64)
		}

		writeErr = writer.Write([]string{ts.Format(time.RFC3339), cell})
		if writeErr != nil {
			return fmt.Errorf("write row %d: %w", i, writeErr)
		}
	}

	writer.Flush()

	return writer.Error()
}
