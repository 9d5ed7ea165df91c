package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// KeyPrefix namespaces all service advertisements in the gossip store.
const KeyPrefix = "service:"

// Record is one service advertisement. It is stored as a JSON value of the
// shape {"host":...,"port":...,"status":...,"uptime":...,"config":{...}}
// under the key "service:<category>:<name>".
type Record struct {
	// Category groups services of one kind ("query", "etl", ...).
	Category string

	// Name identifies the service within its category.
	Name string

	Host   string
	Port   int
	Status string

	// Uptime is the service's uptime in seconds.
	Uptime int64

	// Config carries service-specific detail, free form.
	Config map[string]any
}

// Key returns the gossip key for this record.
func (r Record) Key() string {
	return KeyPrefix + r.Category + ":" + r.Name
}

// recordValue is the wire shape of an advertisement value.
type recordValue struct {
	Host   string         `json:"host"`
	Port   int            `json:"port"`
	Status string         `json:"status"`
	Uptime int64          `json:"uptime"`
	Config map[string]any `json:"config"`
}

// MarshalValue renders the record's JSON value. A nil Config marshals as
// an empty object, never null.
func (r Record) MarshalValue() (string, error) {
	config := r.Config
	if config == nil {
		config = map[string]any{}
	}
	raw, err := json.Marshal(recordValue{
		Host:   r.Host,
		Port:   r.Port,
		Status: r.Status,
		Uptime: r.Uptime,
		Config: config,
	})
	if err != nil {
		return "", fmt.Errorf("registry: marshal record %s: %w", r.Key(), err)
	}
	return string(raw), nil
}

// ParseRecord reads an advertisement value back into a Record. The parser
// is deliberately tolerant: other writers advertise port and uptime as
// either JSON numbers or strings, and fields may be missing entirely, so
// every field falls back to a default rather than failing the whole row.
// Only a value that is not a JSON object at all is an error.
func ParseRecord(category, name, value string) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return Record{}, fmt.Errorf("registry: parse record %s%s:%s: %w", KeyPrefix, category, name, err)
	}

	rec := Record{
		Category: category,
		Name:     name,
		Status:   "unknown",
		Config:   map[string]any{},
	}

	if v, ok := raw["host"]; ok {
		_ = json.Unmarshal(v, &rec.Host)
	}
	if v, ok := raw["status"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			rec.Status = s
		}
	}
	if v, ok := raw["port"]; ok {
		rec.Port = int(looseInt(v))
	}
	if v, ok := raw["uptime"]; ok {
		rec.Uptime = looseInt(v)
	}
	if v, ok := raw["config"]; ok {
		var cfg map[string]any
		if json.Unmarshal(v, &cfg) == nil && cfg != nil {
			rec.Config = cfg
		}
	}
	return rec, nil
}

// looseInt reads a JSON number or numeric string, defaulting to 0.
func looseInt(raw json.RawMessage) int64 {
	var n int64
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
