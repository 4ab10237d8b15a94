package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/property-cli/internal/model"
)

// Observation file formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
)

// DetectFormat guesses the format from a file extension, defaulting to JSONL.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSONL
	}
}

// emitFunc delivers one observation, reporting false once ctx is done.
type emitFunc func(model.Observation) bool

// stream runs read in a goroutine feeding the returned channels. Both are
// closed when read returns.
func stream(ctx context.Context, read func(emit emitFunc) error) (<-chan model.Observation, <-chan error) {
	obsCh := make(chan model.Observation, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(obsCh)
		defer close(errCh)

		emit := func(obs model.Observation) bool {
			select {
			case obsCh <- obs:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if err := read(emit); err != nil {
			errCh <- err
			return
		}
		if ctx.Err() != nil {
			errCh <- eris.Wrap(ctx.Err(), "ingest: read cancelled")
		}
	}()

	return obsCh, errCh
}

// StreamJSONL decodes one observation per line. An observation without a
// source key takes opts.SourceKey.
func StreamJSONL(ctx context.Context, r io.Reader, opts RowOptions) (<-chan model.Observation, <-chan error) {
	return stream(ctx, func(emit emitFunc) error { return readJSONL(r, opts, emit) })
}

// StreamCSV reads a header row followed by observation rows.
func StreamCSV(ctx context.Context, r io.Reader, opts RowOptions) (<-chan model.Observation, <-chan error) {
	return stream(ctx, func(emit emitFunc) error { return readCSV(r, opts, emit) })
}

// StreamXLSX reads the first sheet of a workbook, header row first.
func StreamXLSX(ctx context.Context, path string, opts RowOptions) (<-chan model.Observation, <-chan error) {
	return stream(ctx, func(emit emitFunc) error { return readXLSX(path, opts, emit) })
}

// StreamFile opens path and streams it in the given format.
func StreamFile(ctx context.Context, path, format string, opts RowOptions) (<-chan model.Observation, <-chan error) {
	if format == FormatXLSX {
		return StreamXLSX(ctx, path, opts)
	}
	return stream(ctx, func(emit emitFunc) error {
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "ingest: open %s", path)
		}
		defer func() { _ = f.Close() }()

		switch format {
		case FormatCSV:
			return readCSV(f, opts, emit)
		case FormatJSONL, "":
			return readJSONL(f, opts, emit)
		default:
			return eris.Errorf("ingest: unknown format %q", format)
		}
	})
}

func readJSONL(r io.Reader, opts RowOptions, emit emitFunc) error {
	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var obs model.Observation
		err := dec.Decode(&obs)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "jsonl: decode record %d", n)
		}
		if obs.SourceKey == "" {
			obs.SourceKey = opts.SourceKey
		}
		if obs.CapturedAt.IsZero() {
			obs.CapturedAt = opts.CapturedAt
		}
		if !emit(obs) {
			return nil
		}
	}
}

func readCSV(r io.Reader, opts RowOptions, emit emitFunc) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "csv: read header")
	}
	m := newRowMapper(header, opts)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "csv: read row")
		}
		if !emit(m.observation(record)) {
			return nil
		}
	}
}

func readXLSX(path string, opts RowOptions, emit emitFunc) error {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return eris.Errorf("xlsx: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var m *rowMapper
	for _, row := range sheet.Rows {
		cells := rowToStrings(row)
		if m == nil {
			m = newRowMapper(cells, opts)
			continue
		}
		if blank(cells) {
			continue
		}
		if !emit(m.observation(cells)) {
			return nil
		}
	}
	return nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
