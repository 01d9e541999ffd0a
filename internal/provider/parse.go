package provider

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"f1telemetry/internal/model"
)

var (
	reClock     = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d+(?:\.\d+)?)$`)
	reTimedelta = regexp.MustCompile(`^(-?\d+) days? (\d+):(\d+):(\d+(?:\.\d+)?)$`)
)

// ParseFrame decodes a telemetry table. CSV must carry a header row; JSON
// may be a {"columns":[...],"data":[[...]]} table or an array of objects.
func ParseFrame(data []byte) (model.Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return model.Frame{}, errors.New("telemetry file is empty")
	}
	var (
		names []string
		rows  [][]string
		err   error
	)
	if looksLikeJSON(trimmed) {
		names, rows, err = readJSONTable(trimmed)
	} else {
		names, rows, err = readCSV(trimmed)
	}
	if err != nil {
		return model.Frame{}, err
	}
	// Unnamed columns are index columns written alongside the data.
	var (
		kept []string
		cols [][]float64
	)
	for c, name := range names {
		if name == "" {
			continue
		}
		col := make([]float64, len(rows))
		for r, row := range rows {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			col[r] = parseCell(cell)
		}
		kept = append(kept, name)
		cols = append(cols, col)
	}
	return model.NewFrame(kept, cols)
}

// ParseLaps decodes a session's lap table into per-driver sector records.
func ParseLaps(data []byte) (map[string][]model.LapSectorRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("lap file is empty")
	}
	var (
		names []string
		rows  [][]string
		err   error
	)
	if looksLikeJSON(trimmed) {
		names, rows, err = readJSONTable(trimmed)
	} else {
		names, rows, err = readCSV(trimmed)
	}
	if err != nil {
		return nil, err
	}
	header := normalizeHeader(names)
	out := make(map[string][]model.LapSectorRecord)
	for i, row := range rows {
		fields := make(map[string]string, len(header))
		for c, name := range header {
			if c < len(row) {
				fields[name] = row[c]
			}
		}
		driver := strings.ToUpper(firstNonEmpty(fields, "driver", "abbreviation", "code"))
		if driver == "" {
			continue
		}
		lapStr := firstNonEmpty(fields, "lapnumber", "lap_number", "lap")
		lap, err := strconv.ParseFloat(lapStr, 64)
		if err != nil || math.IsNaN(lap) {
			return nil, fmt.Errorf("row %d: lap number %q", i+1, lapStr)
		}
		out[driver] = append(out[driver], model.LapSectorRecord{
			LapNumber: int(lap),
			LapTime:   ParseDuration(firstNonEmpty(fields, "laptime", "lap_time")),
			Sector1:   ParseDuration(firstNonEmpty(fields, "sector1time", "sector1", "s1")),
			Sector2:   ParseDuration(firstNonEmpty(fields, "sector2time", "sector2", "s2")),
			Sector3:   ParseDuration(firstNonEmpty(fields, "sector3time", "sector3", "s3")),
		})
	}
	return out, nil
}

// ParseSchedule decodes a season schedule: an array of objects with round
// number, location and event name.
func ParseSchedule(data []byte) ([]model.Event, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	events := make([]model.Event, 0, len(raw))
	for i, obj := range raw {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			fields[strings.ToLower(k)] = stringify(v)
		}
		roundStr := firstNonEmpty(fields, "roundnumber", "round_number", "round")
		round, err := strconv.ParseFloat(roundStr, 64)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: round number %q", i, roundStr)
		}
		events = append(events, model.Event{
			RoundNumber: int(round),
			Location:    firstNonEmpty(fields, "location", "country"),
			EventName:   firstNonEmpty(fields, "eventname", "event_name", "name"),
		})
	}
	return events, nil
}

// ParseDuration accepts seconds ("91.234"), clock notation ("1:31.234"),
// Go durations ("1m31.234s") and timedelta text ("0 days 00:01:31.234000").
// Anything else, including "NaT" and "", is absent.
func ParseDuration(value string) model.Duration {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "nat", "nan", "none", "null":
		return model.Duration{}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return model.Duration{}
		}
		return model.Present(seconds(secs))
	}
	if m := reTimedelta.FindStringSubmatch(value); m != nil {
		days, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		s, _ := strconv.ParseFloat(m[4], 64)
		return model.Present(time.Duration(days)*24*time.Hour + time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + seconds(s))
	}
	if m := reClock.FindStringSubmatch(value); m != nil {
		h := 0
		if m[1] != "" {
			h, _ = strconv.Atoi(m[1])
		}
		mins, _ := strconv.Atoi(m[2])
		s, _ := strconv.ParseFloat(m[3], 64)
		return model.Present(time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + seconds(s))
	}
	if d, err := time.ParseDuration(value); err == nil {
		return model.Present(d)
	}
	return model.Duration{}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func parseCell(value string) float64 {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "nan", "none", "null", "nat":
		return math.NaN()
	case "true":
		return 1
	case "false":
		return 0
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsInf(f, 0) {
			return math.NaN()
		}
		return f
	}
	if d := ParseDuration(value); d.Valid {
		return d.Seconds()
	}
	return math.NaN()
}

func readCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	header = trimHeader(header)
	if !looksLikeHeader(header) {
		return nil, nil, errors.New("csv has no header row")
	}
	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

type jsonTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func readJSONTable(data []byte) ([]string, [][]string, error) {
	if data[0] == '{' {
		var table jsonTable
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, nil, fmt.Errorf("decode table: %w", err)
		}
		if len(table.Columns) == 0 {
			return nil, nil, errors.New("table has no columns")
		}
		rows := make([][]string, len(table.Data))
		for i, rec := range table.Data {
			row := make([]string, len(rec))
			for j, v := range rec {
				row[j] = stringify(v)
			}
			rows[i] = row
		}
		return trimHeader(table.Columns), rows, nil
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("decode records: %w", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(names))
		for j, name := range names {
			if v, ok := rec[name]; ok {
				row[j] = stringify(v)
			}
		}
		rows[i] = row
	}
	return names, rows, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func looksLikeJSON(b []byte) bool {
	for _, ch := range b {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

// looksLikeHeader rejects a first row made only of numbers.
func looksLikeHeader(record []string) bool {
	for _, v := range record {
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return true
		}
	}
	return false
}

func trimHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}
