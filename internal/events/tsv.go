package events

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Writer appends events to a TSV log file. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	csv     *csv.Writer
	version string
}

// NewWriter opens path for append, creating it (and its directory) with a
// header row when it does not exist yet. version is stamped on every row.
func NewWriter(path, version string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open events log: %w", err)
	}

	w := &Writer{file: f, csv: newTSVWriter(f), version: version}
	if isNew {
		if err := w.csv.Write(Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return w, nil
}

// Write appends one event. An empty Version is filled from the writer.
func (w *Writer) Write(e Event) error {
	if e.Version == "" {
		e.Version = w.version
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("events log is closed")
	}
	if err := w.csv.Write(encode(e)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	err := w.file.Close()
	w.file = nil
	return err
}

// WriteAll writes a complete log, header included, to out.
func WriteAll(out io.Writer, evs []Event) error {
	cw := newTSVWriter(out)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, e := range evs {
		if err := cw.Write(encode(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFile reads every event of the log at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events log: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses a TSV events log with a header row. Columns are matched by
// name, so extra columns are ignored.
func Read(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Columns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("events log is missing column %q", name)
		}
	}

	var evs []Event
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := decode(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		evs = append(evs, e)
	}
	return evs, nil
}

func newTSVWriter(out io.Writer) *csv.Writer {
	cw := csv.NewWriter(out)
	cw.Comma = '\t'
	return cw
}

func encode(e Event) []string {
	row := make([]string, 0, len(Columns))
	row = append(row,
		formatFloat(e.Onset),
		formatFloat(e.Duration),
		formatIntPtr(e.Trial),
		formatActionType(e.ActionType),
		formatIntPtr(e.Action),
		formatIntPtr(e.Outcome),
		formatFloatPtr(e.ResponseTime),
		formatIntPtr(e.Value),
	)
	if e.Setting != nil {
		for _, v := range e.Setting.LogColumns() {
			row = append(row, formatFloat(v))
		}
	} else {
		for range payoff.LogColumnNames {
			row = append(row, NA)
		}
	}
	reset := "0"
	if e.Reset {
		reset = "1"
	}
	return append(row, e.Version, reset)
}

func decode(record []string, index map[string]int) (Event, error) {
	get := func(name string) string {
		i := index[name]
		if i >= len(record) {
			return NA
		}
		return record[i]
	}

	var e Event
	var err error
	if e.Onset, err = parseFloat(get("onset")); err != nil {
		return Event{}, fmt.Errorf("onset: %w", err)
	}
	if e.Duration, err = parseFloat(get("duration")); err != nil {
		return Event{}, fmt.Errorf("duration: %w", err)
	}
	if e.Trial, err = parseIntPtr(get("trial")); err != nil {
		return Event{}, fmt.Errorf("trial: %w", err)
	}
	if e.Trial != nil && *e.Trial < 0 {
		return Event{}, fmt.Errorf("trial: negative index %d", *e.Trial)
	}
	if at := get("action_type"); at != NA {
		e.ActionType = ActionType(at)
		if !e.ActionType.Valid() {
			return Event{}, fmt.Errorf("unknown action_type %q", at)
		}
	}
	if e.Action, err = parseIntPtr(get("action")); err != nil {
		return Event{}, fmt.Errorf("action: %w", err)
	}
	if e.Outcome, err = parseIntPtr(get("outcome")); err != nil {
		return Event{}, fmt.Errorf("outcome: %w", err)
	}
	if e.ResponseTime, err = parseFloatPtr(get("response_time")); err != nil {
		return Event{}, fmt.Errorf("response_time: %w", err)
	}
	if e.Value, err = parseIntPtr(get("value")); err != nil {
		return Event{}, fmt.Errorf("value: %w", err)
	}

	var cols [constants.SettingColumns]float64
	present := 0
	for i, name := range payoff.LogColumnNames {
		v := get(name)
		if v == NA || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", name, err)
		}
		cols[i] = f
		present++
	}
	switch present {
	case 0:
	case constants.SettingColumns:
		s, err := payoff.FromLogColumns(cols)
		if err != nil {
			return Event{}, fmt.Errorf("setting: %w", err)
		}
		e.Setting = &s
	default:
		return Event{}, fmt.Errorf("setting has %d of %d columns", present, constants.SettingColumns)
	}

	e.Version = get("version")
	if e.Version == NA {
		e.Version = ""
	}
	switch get("reset") {
	case "1", "True", "true":
		e.Reset = true
	}
	return e, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return NA
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return NA
	}
	return strconv.Itoa(*v)
}

func formatActionType(a ActionType) string {
	if a == ActionNone {
		return NA
	}
	return string(a)
}

func parseFloat(v string) (float64, error) {
	if v == NA || v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseFloatPtr(v string) (*float64, error) {
	if v == NA || v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// parseIntPtr accepts "3" and "3.0"; the latter appears in logs written by
// tools that store integer columns as floats.
func parseIntPtr(v string) (*int, error) {
	if v == NA || v == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if f != float64(int(f)) {
		return nil, fmt.Errorf("%q is not an integer", v)
	}
	n := int(f)
	return &n, nil
}
