// Package export writes payoff settings (a whole pool or a trial schedule) as
// Apache Arrow IPC files for analysis in pandas, polars or R.
package export

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Column names ahead of the eight setting columns.
const (
	ColPosition  = "position"
	ColSettingID = "setting_id"
	ColEVDiff    = "ev_diff"
)

// Schema returns the Arrow schema of an exported table. meta is stored as
// schema metadata and may be nil.
func Schema(meta map[string]string) *arrow.Schema {
	fields := []arrow.Field{
		{Name: ColPosition, Type: arrow.PrimitiveTypes.Int32},
		{Name: ColSettingID, Type: arrow.PrimitiveTypes.Int64},
	}
	for i, name := range payoff.RowColumnNames {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if isMagnitudeColumn(i) {
			typ = arrow.PrimitiveTypes.Int64
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ})
	}
	fields = append(fields, arrow.Field{Name: ColEVDiff, Type: arrow.PrimitiveTypes.Float64})

	if len(meta) == 0 {
		return arrow.NewSchema(fields, nil)
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = meta[k]
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

// isMagnitudeColumn reports whether Row column i holds a magnitude. Row
// order is mag, mag, prob, prob per side.
func isMagnitudeColumn(i int) bool {
	return i%4 < 2
}

// Write encodes settings as one Arrow IPC file record batch. Position is the
// index in settings, i.e. the trial index for a schedule.
func Write(w io.Writer, settings []payoff.Setting, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := Schema(meta)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	pos := b.Field(0).(*array.Int32Builder)
	ids := b.Field(1).(*array.Int64Builder)
	evs := b.Field(2 + constants.SettingColumns).(*array.Float64Builder)
	for i, s := range settings {
		pos.Append(int32(i))
		ids.Append(int64(s.ID))
		for c, v := range s.Row() {
			f := b.Field(2 + c)
			if isMagnitudeColumn(c) {
				f.(*array.Int64Builder).Append(int64(v))
			} else {
				f.(*array.Float64Builder).Append(v)
			}
		}
		evs.Append(s.EVDiff())
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finish arrow file: %w", err)
	}
	return nil
}

// WriteFile writes settings to path, replacing any existing file.
func WriteFile(path string, settings []payoff.Setting, meta map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, settings, meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes an Arrow IPC file written by Write. Every row is validated
// as a setting.
func Read(r ipc.ReadAtSeeker) ([]payoff.Setting, map[string]string, error) {
	mem := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer fr.Close()

	schema := fr.Schema()
	if err := checkSchema(schema); err != nil {
		return nil, nil, err
	}

	meta := make(map[string]string)
	md := schema.Metadata()
	for i, k := range md.Keys() {
		meta[k] = md.Values()[i]
	}

	var settings []payoff.Setting
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		batch, err := decodeRecord(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("record batch %d: %w", i, err)
		}
		settings = append(settings, batch...)
	}
	return settings, meta, nil
}

// ReadFile reads settings from an Arrow IPC file.
func ReadFile(path string) ([]payoff.Setting, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

func checkSchema(schema *arrow.Schema) error {
	want := Schema(nil)
	if schema.NumFields() != want.NumFields() {
		return fmt.Errorf("arrow file has %d columns, want %d", schema.NumFields(), want.NumFields())
	}
	for i, f := range want.Fields() {
		got := schema.Field(i)
		if got.Name != f.Name || !arrow.TypeEqual(got.Type, f.Type) {
			return fmt.Errorf("column %d is %s %s, want %s %s", i, got.Name, got.Type, f.Name, f.Type)
		}
	}
	return nil
}

func decodeRecord(rec arrow.Record) ([]payoff.Setting, error) {
	ids := rec.Column(1).(*array.Int64)
	out := make([]payoff.Setting, 0, rec.NumRows())
	for r := 0; r < int(rec.NumRows()); r++ {
		var row [constants.SettingColumns]float64
		for c := range row {
			col := rec.Column(2 + c)
			if isMagnitudeColumn(c) {
				row[c] = float64(col.(*array.Int64).Value(r))
			} else {
				row[c] = col.(*array.Float64).Value(r)
			}
		}
		s, err := payoff.FromRow(int(ids.Value(r)), row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		out = append(out, s)
	}
	return out, nil
}
