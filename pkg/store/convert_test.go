package store

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int64
	}{
		{"int64", int64(42), 42},
		{"int", 7, 7},
		{"float64", float64(3.9), 3},
		{"nil", nil, 0},
		{"string", "12", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asInt64(tt.value); got != tt.expected {
				t.Errorf("asInt64(%v) = %d, expected %d", tt.value, got, tt.expected)
			}
		})
	}
}

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected float64
	}{
		{"float64", 0.85, 0.85},
		{"int64", int64(2), 2},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asFloat64(tt.value); got != tt.expected {
				t.Errorf("asFloat64(%v) = %v, expected %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestAsTime(t *testing.T) {
	ref := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	if got, ok := asTime(ref.Format(time.RFC3339)); !ok || !got.Equal(ref) {
		t.Errorf("asTime(RFC3339 string) = %v, %v; expected %v, true", got, ok, ref)
	}

	if got, ok := asTime(ref); !ok || !got.Equal(ref) {
		t.Errorf("asTime(time.Time) = %v, %v; expected passthrough", got, ok)
	}

	if _, ok := asTime("not a timestamp"); ok {
		t.Error("asTime should reject malformed strings")
	}

	if _, ok := asTime(nil); ok {
		t.Error("asTime should reject nil")
	}
}

func TestSnapshotRowFromRecord(t *testing.T) {
	validFrom := "2026-08-01T00:00:00Z"
	validTo := "2026-08-15T00:00:00Z"

	record := &db.Record{
		Keys: []string{
			"source_id", "source_name", "target_id", "target_name",
			"relation", "confidence", "source_url", "valid_from", "valid_to",
		},
		Values: []any{
			"openai", "OpenAI", "gpt4", "GPT-4",
			"RELEASED", 0.95, "https://example.com/news", validFrom, validTo,
		},
	}

	row := snapshotRowFromRecord(record)

	if row.sourceID != "openai" || row.targetID != "gpt4" {
		t.Errorf("endpoints wrong: %+v", row)
	}
	if row.relation != "RELEASED" {
		t.Errorf("relation = %q, expected RELEASED", row.relation)
	}
	if row.confidence != 0.95 {
		t.Errorf("confidence = %v, expected 0.95", row.confidence)
	}
	if row.validFrom.IsZero() {
		t.Error("valid_from should be parsed")
	}
	if row.validTo == nil {
		t.Fatal("valid_to should be parsed for closed edges")
	}
	if row.validTo.Format(time.RFC3339) != validTo {
		t.Errorf("valid_to = %v, expected %s", row.validTo, validTo)
	}
}

func TestSnapshotRowFromRecordLiveEdge(t *testing.T) {
	record := &db.Record{
		Keys:   []string{"source_id", "target_id", "relation", "valid_from", "valid_to"},
		Values: []any{"a", "b", "KNOWS", "2026-08-01T00:00:00Z", nil},
	}

	row := snapshotRowFromRecord(record)
	if row.validTo != nil {
		t.Errorf("nil valid_to should stay nil, got %v", row.validTo)
	}
}
