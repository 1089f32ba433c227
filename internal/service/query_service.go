package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"campuswatt/internal/models"
	"campuswatt/internal/store"
)

// DefaultTariffRate is the cost per kilowatt-hour applied when the caller
// does not supply one.
const DefaultTariffRate = 8.0

const (
	defaultHistoryStart = "-1h"
	statusWindow        = "-1d"
)

// InputError reports a caller contract violation (bad node, window, page
// or limit). The API layer maps it to a 400; everything else the service
// returns is a documented zero-value shape, never a store fault.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// QueryService derives the four read views from raw store rows. It is
// stateless and safe for concurrent use; every call re-reads the store.
type QueryService struct {
	store store.Store
	log   *slog.Logger
}

// New creates a QueryService on top of the given store.
func New(st store.Store, logger *slog.Logger) *QueryService {
	return &QueryService{store: st, log: logger}
}

// History returns one page of a node's readings within [start, end],
// most recent first. Pagination happens here on the sorted rows, not in
// the store query, so total always reflects the whole window. A page past
// the end yields empty data with the correct total.
func (s *QueryService) History(ctx context.Context, nodeID, start, end string, page, limit int) (models.HistoryPage, error) {
	if nodeID == "" {
		return models.HistoryPage{}, &InputError{Msg: "node_id is required"}
	}
	if page < 1 {
		return models.HistoryPage{}, &InputError{Msg: "page must be >= 1"}
	}
	if limit <= 0 {
		return models.HistoryPage{}, &InputError{Msg: "limit must be positive"}
	}
	if start == "" {
		start = defaultHistoryStart
	}
	if !store.ValidRangeBound(start) {
		return models.HistoryPage{}, &InputError{Msg: "start must be a relative duration like -1h or an RFC3339 instant"}
	}
	if end != "" && !store.ValidRangeBound(end) {
		return models.HistoryPage{}, &InputError{Msg: "end must be a relative duration like -1h or an RFC3339 instant"}
	}

	rows, err := s.store.QueryRows(ctx, store.Query{
		Measurement: store.Measurement,
		NodeID:      nodeID,
		Start:       start,
		Stop:        end,
		Pivot:       store.PivotByTime,
	})
	if err != nil {
		s.log.Error("history query failed, returning empty page", "node_id", nodeID, "err", err)
		return models.HistoryPage{Page: page, Limit: limit, Data: []models.HistoryRow{}}, nil
	}

	sort.Slice(rows, func(a, b int) bool { return rows[a].Time.After(rows[b].Time) })

	total := len(rows)
	lo := (page - 1) * limit
	hi := lo + limit
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}

	data := make([]models.HistoryRow, 0, hi-lo)
	for _, row := range rows[lo:hi] {
		data = append(data, models.HistoryRow{
			Time:        formatUTC(row.Time),
			NodeID:      row.NodeID,
			Voltage:     row.Fields["voltage"],
			Current:     row.Fields["current"],
			Power:       row.Fields["power"],
			PowerFactor: row.Fields["power_factor"],
			Frequency:   row.Fields["frequency"],
		})
	}
	return models.HistoryPage{Total: total, Page: page, Limit: limit, Data: data}, nil
}

// LatestStatus returns the last reading of every node seen in the trailing
// day, one entry per node. Nodes silent for the whole window are absent.
func (s *QueryService) LatestStatus(ctx context.Context) ([]models.NodeStatus, error) {
	rows, err := s.store.QueryRows(ctx, store.Query{
		Measurement: store.Measurement,
		Start:       statusWindow,
		Last:        true,
		Pivot:       store.PivotByNode,
	})
	if err != nil {
		s.log.Error("latest status query failed, returning empty result", "err", err)
		return []models.NodeStatus{}, nil
	}

	statuses := make([]models.NodeStatus, 0, len(rows))
	for _, row := range rows {
		if row.NodeID == "" {
			continue
		}
		statuses = append(statuses, models.NodeStatus{
			NodeID:  row.NodeID,
			Power:   row.Fields["power"],
			Voltage: row.Fields["voltage"],
			Time:    formatUTC(row.Time),
		})
	}
	sort.Slice(statuses, func(a, b int) bool { return statuses[a].NodeID < statuses[b].NodeID })
	return statuses, nil
}

// CampusSummary sums the latest power value of every node reporting in the
// trailing day into a single figure. No reporting nodes means 0.
func (s *QueryService) CampusSummary(ctx context.Context) (models.CampusSummaryResponse, error) {
	total, err := s.store.QueryScalar(ctx, store.Query{
		Measurement: store.Measurement,
		Fields:      []string{"power"},
		Start:       statusWindow,
		Last:        true,
		Group:       true,
		Sum:         true,
	})
	if err != nil {
		s.log.Error("campus summary query failed, returning zero", "err", err)
		return models.CampusSummaryResponse{}, nil
	}
	return models.CampusSummaryResponse{TotalPower: total}, nil
}

// costWindows are queried independently so one failing window cannot
// suppress the others.
var costWindows = []struct {
	name  string
	start string
}{
	{"daily", "-1d"},
	{"weekly", "-7d"},
	{"monthly", "-30d"},
}

// CostSummary integrates power over the trailing day, week and month and
// projects each to a cost at tariffRate per kilowatt-hour. A window whose
// query fails contributes 0; the response always carries all three keys.
func (s *QueryService) CostSummary(ctx context.Context, tariffRate float64) (models.CostSummaryResponse, error) {
	if tariffRate <= 0 {
		tariffRate = DefaultTariffRate
	}

	costs := make(map[string]float64, len(costWindows))
	for _, w := range costWindows {
		joules, err := s.store.QueryScalar(ctx, store.Query{
			Measurement:  store.Measurement,
			Fields:       []string{"power"},
			Start:        w.start,
			IntegralUnit: "1s",
			Group:        true,
			Sum:          true,
		})
		if err != nil {
			s.log.Error("cost window query failed, defaulting to zero", "window", w.name, "err", err)
			costs[w.name] = 0
			continue
		}
		kwh := joules / 3_600_000
		costs[w.name] = round2(kwh * tariffRate)
	}

	return models.CostSummaryResponse{
		Daily:   costs["daily"],
		Weekly:  costs["weekly"],
		Monthly: costs["monthly"],
	}, nil
}

// formatUTC normalizes a store timestamp to RFC3339 with the Z designator.
func formatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
