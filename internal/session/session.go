// Package session parses PokerGFX live-data-export JSON files.
//
// The export schema is not locked down: producers add fields over time and
// the agent must preserve anything it doesn't understand. Session therefore
// treats the file as a schemaless bag and extracts only the handful of
// fields the remote table cares about.
package session

import (
	"encoding/json"
	"fmt"
)

// Record is a parsed PokerGFX export, ready to become a RemoteRecord.
// RawJSON retains the entire decoded object (including fields Record does
// not name) so nothing producers write is ever discarded.
type Record struct {
	ID                 string
	Type               string
	EventTitle         string
	SoftwareVersion    string
	CreatedDateTimeUTC string
	HandCount          int
	RawJSON            map[string]any
}

// Parse decodes raw file bytes into a Record. A non-object top-level
// payload is a parse failure, matching the spec's definition of malformed
// input.
func Parse(data []byte) (*Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing session JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parsing session JSON: top-level value is not an object")
	}

	rec := &Record{
		ID:                 stringField(raw, "ID"),
		Type:               stringField(raw, "Type"),
		EventTitle:         stringField(raw, "EventTitle"),
		SoftwareVersion:    stringField(raw, "SoftwareVersion"),
		CreatedDateTimeUTC: stringField(raw, "CreatedDateTimeUTC"),
		RawJSON:            raw,
	}

	if hands, ok := raw["Hands"].([]any); ok {
		rec.HandCount = len(hands)
	}

	return rec, nil
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
