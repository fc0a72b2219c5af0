package claude

import (
	"github.com/shaneholloman/automaker/internal/provider/process"
)

// Record is one decoded stream-json line from the claude CLI. Data keeps
// the whole object; handlers reach nested fields through path helpers
// rather than per-shape structs because the CLI's schema drifts across
// releases and unknown fields must never break a run.
type Record struct {
	Type string
	Data map[string]any
}

// decodeRecord lifts a supervised output record into a typed Record.
// Records that are not objects, or carry no type, are dropped upstream.
func decodeRecord(rec process.Record) (Record, bool) {
	obj, ok := rec.Object()
	if !ok {
		return Record{}, false
	}
	t, _ := obj["type"].(string)
	if t == "" {
		return Record{}, false
	}
	return Record{Type: t, Data: obj}, true
}

// GetString extracts a string at the given path.
func (r Record) GetString(path ...string) (string, bool) {
	value, ok := r.getValue(path...)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// GetBool extracts a bool at the given path.
func (r Record) GetBool(path ...string) (bool, bool) {
	value, ok := r.getValue(path...)
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// GetMap extracts an object at the given path.
func (r Record) GetMap(path ...string) (map[string]any, bool) {
	value, ok := r.getValue(path...)
	if !ok {
		return nil, false
	}
	m, ok := value.(map[string]any)
	return m, ok
}

// GetArray extracts an array at the given path.
func (r Record) GetArray(path ...string) ([]any, bool) {
	value, ok := r.getValue(path...)
	if !ok {
		return nil, false
	}
	a, ok := value.([]any)
	return a, ok
}

func (r Record) getValue(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	current := any(r.Data)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
