package logger

import (
	"encoding/json"
	"io"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		InvalidInvocations: NewPathCounter("command", "error"),
		ScriptErrors:       NewPathCounter("script", "error"),
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries int `json:"log_entries"`
	Sessions   int `json:"sessions"`

	Events             StrCounter   `json:"events"`
	Commands           StrCounter   `json:"commands"`
	ExitStatuses       StrCounter   `json:"exit_statuses,omitempty"`
	InvalidInvocations *PathCounter `json:"invalid_invocations"`
	ScriptErrors       *PathCounter `json:"script_errors"`
	InPlaceEdits       StrCounter   `json:"in_place_edits,omitempty"`

	sessions map[string]bool
}

// Update adds an entry to the report.
func (r *Report) Update(le *structpb.Struct) {
	r.LogEntries++

	fields := le.AsMap()
	if id := str(fields[FieldSessionID]); id != "" {
		if r.sessions == nil {
			r.sessions = make(map[string]bool)
		}
		if !r.sessions[id] {
			r.sessions[id] = true
			r.Sessions++
		}
	}

	event := str(fields[FieldEvent])
	r.Events.Increment(event)

	switch event {
	case "run_command":
		r.Commands.Increment(command(fields))
	case "exit":
		r.ExitStatuses.Increment(str(fields["status"]))
	case "invalid_invocation":
		r.InvalidInvocations.Increment(command(fields), str(fields["error"]))
	case "script_error":
		r.ScriptErrors.Increment(str(fields["script"]), str(fields["error"]))
	case "in_place_edit":
		r.InPlaceEdits.Increment(str(fields["path"]))
	}
}

// command returns the program name from an entry's argv.
func command(fields map[string]interface{}) string {
	argv, _ := fields["argv"].([]interface{})
	if len(argv) == 0 {
		return ""
	}
	return str(argv[0])
}

func str(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		out, _ := json.Marshal(s)
		return string(out)
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements json.Marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

// NewPathCounter creates a counter keyed on a tuple of named columns.
func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given tuple, which must have one value per
// column.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implements json.Marshaler. Tuples are sorted by descending
// count.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
