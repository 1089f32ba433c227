package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PivotKey selects the row key of an optional pivot reshaping per-field
// rows into one wide row per key.
type PivotKey string

const (
	PivotNone   PivotKey = ""
	PivotByTime PivotKey = "_time"
	PivotByNode PivotKey = "node_id"
)

// Query describes one range query against the store. It is translated to
// Flux internally so caller-supplied strings are never interpolated raw.
type Query struct {
	Measurement string
	NodeID      string   // optional tag filter
	Fields      []string // optional field filter
	Start       string   // relative duration (-1h) or RFC3339 instant
	Stop        string   // optional, defaults to now()

	Last         bool     // last point per series
	IntegralUnit string   // e.g. "1s"; time-integral per series
	Group        bool     // collapse series grouping
	Sum          bool     // sum remaining values
	Pivot        PivotKey // optional pivot
	SortDesc     bool     // sort by _time descending
}

var (
	relativeDurationRe = regexp.MustCompile(`^-[0-9]+(ms|s|m|h|d|w|mo|y)$`)
	integralUnitRe     = regexp.MustCompile(`^[0-9]+(ms|s|m|h|d)$`)
)

// ValidRangeBound reports whether s is usable as a Flux range bound:
// either a relative duration like "-1h" or an absolute RFC3339 instant.
func ValidRangeBound(s string) bool {
	if relativeDurationRe.MatchString(s) {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// escapeString makes s safe to embed in a double-quoted Flux string
// literal.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Flux renders the query against the given bucket. It fails on malformed
// range bounds or units rather than passing them to the server.
func (q Query) Flux(bucket string) (string, error) {
	if q.Measurement == "" {
		return "", fmt.Errorf("flux: measurement is required")
	}
	if !ValidRangeBound(q.Start) {
		return "", fmt.Errorf("flux: invalid range start %q", q.Start)
	}
	if q.Stop != "" && !ValidRangeBound(q.Stop) {
		return "", fmt.Errorf("flux: invalid range stop %q", q.Stop)
	}
	if q.IntegralUnit != "" && !integralUnitRe.MatchString(q.IntegralUnit) {
		return "", fmt.Errorf("flux: invalid integral unit %q", q.IntegralUnit)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: \"%s\")\n", escapeString(bucket))
	if q.Stop != "" {
		fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n", q.Start, q.Stop)
	} else {
		fmt.Fprintf(&b, "  |> range(start: %s)\n", q.Start)
	}
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_measurement\"] == \"%s\")\n", escapeString(q.Measurement))
	if q.NodeID != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"node_id\"] == \"%s\")\n", escapeString(q.NodeID))
	}
	if len(q.Fields) > 0 {
		clauses := make([]string, len(q.Fields))
		for i, f := range q.Fields {
			clauses[i] = fmt.Sprintf("r[\"_field\"] == \"%s\"", escapeString(f))
		}
		fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", strings.Join(clauses, " or "))
	}
	if q.Last {
		b.WriteString("  |> last()\n")
	}
	if q.IntegralUnit != "" {
		fmt.Fprintf(&b, "  |> integral(unit: %s)\n", q.IntegralUnit)
	}
	if q.Group {
		b.WriteString("  |> group()\n")
	}
	if q.Sum {
		b.WriteString("  |> sum(column: \"_value\")\n")
	}
	if q.Pivot != PivotNone {
		fmt.Fprintf(&b, "  |> pivot(rowKey:[\"%s\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n", q.Pivot)
	}
	if q.SortDesc {
		b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	}
	return b.String(), nil
}
