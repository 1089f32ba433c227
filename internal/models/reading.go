package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Reading is one validated sensor sample published by a node. It is
// immutable once decoded; the store is the system of record.
type Reading struct {
	NodeID      string  `json:"node_id"`
	Timestamp   int64   `json:"timestamp"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	PowerFactor float64 `json:"power_factor"`
	Frequency   float64 `json:"frequency"`
}

// readingWire mirrors Reading with pointer fields so a missing key is
// distinguishable from a zero value.
type readingWire struct {
	NodeID      *string  `json:"node_id"`
	Timestamp   *int64   `json:"timestamp"`
	Voltage     *float64 `json:"voltage"`
	Current     *float64 `json:"current"`
	Power       *float64 `json:"power"`
	PowerFactor *float64 `json:"power_factor"`
	Frequency   *float64 `json:"frequency"`
}

// DecodeError reports a payload that is not well-formed JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a well-formed payload that fails the reading
// schema (missing field, empty node_id, non-finite number).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: field %q %s", e.Field, e.Reason)
}

// DecodeReading parses a raw message payload into a validated Reading.
func DecodeReading(payload []byte) (Reading, error) {
	var w readingWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, &DecodeError{Err: err}
	}
	return w.toReading()
}

func (w readingWire) toReading() (Reading, error) {
	if w.NodeID == nil {
		return Reading{}, &ValidationError{Field: "node_id", Reason: "is required"}
	}
	if *w.NodeID == "" {
		return Reading{}, &ValidationError{Field: "node_id", Reason: "must be non-empty"}
	}
	if w.Timestamp == nil {
		return Reading{}, &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	numeric := []struct {
		name  string
		value *float64
	}{
		{"voltage", w.Voltage},
		{"current", w.Current},
		{"power", w.Power},
		{"power_factor", w.PowerFactor},
		{"frequency", w.Frequency},
	}
	for _, f := range numeric {
		if f.value == nil {
			return Reading{}, &ValidationError{Field: f.name, Reason: "is required"}
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return Reading{}, &ValidationError{Field: f.name, Reason: "must be finite"}
		}
	}
	return Reading{
		NodeID:      *w.NodeID,
		Timestamp:   *w.Timestamp,
		Voltage:     *w.Voltage,
		Current:     *w.Current,
		Power:       *w.Power,
		PowerFactor: *w.PowerFactor,
		Frequency:   *w.Frequency,
	}, nil
}
