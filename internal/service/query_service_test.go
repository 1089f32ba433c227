package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuswatt/internal/models"
	"campuswatt/internal/store"
)

type stubStore struct {
	rows      []store.Row
	rowsErr   error
	scalars   map[string]float64 // keyed by query start
	scalarErr map[string]error   // per-window failures
	lastQuery store.Query
}

func (s *stubStore) WriteReading(ctx context.Context, r models.Reading) error { return nil }

func (s *stubStore) QueryRows(ctx context.Context, q store.Query) ([]store.Row, error) {
	s.lastQuery = q
	return s.rows, s.rowsErr
}

func (s *stubStore) QueryScalar(ctx context.Context, q store.Query) (float64, error) {
	s.lastQuery = q
	if err := s.scalarErr[q.Start]; err != nil {
		return 0, err
	}
	return s.scalars[q.Start], nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close()                         {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func historyRows(n int) []store.Row {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := make([]store.Row, 0, n)
	// deliberately out of order so sorting is exercised
	for i := 0; i < n; i++ {
		rows = append(rows, store.Row{
			Time:   base.Add(time.Duration((i*7)%n) * time.Minute),
			NodeID: "n1",
			Fields: map[string]float64{
				"voltage": 230, "current": 2, "power": 400, "power_factor": 0.9, "frequency": 50,
			},
		})
	}
	return rows
}

func TestHistoryOrderingAndShape(t *testing.T) {
	st := &stubStore{rows: historyRows(10)}
	svc := New(st, testLogger())

	page, err := svc.History(context.Background(), "n1", "-1h", "", 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	require.Len(t, page.Data, 10)
	for i := 1; i < len(page.Data); i++ {
		assert.True(t, page.Data[i-1].Time >= page.Data[i].Time,
			"rows must be sorted by time descending")
	}
	assert.Equal(t, store.PivotByTime, st.lastQuery.Pivot)
	assert.Equal(t, "n1", st.lastQuery.NodeID)
}

func TestHistoryPaginationPartitions(t *testing.T) {
	st := &stubStore{rows: historyRows(23)}
	svc := New(st, testLogger())

	const limit = 5
	seen := map[string]int{}
	total := 0
	for page := 1; page <= 5; page++ {
		res, err := svc.History(context.Background(), "n1", "-1h", "", page, limit)
		require.NoError(t, err)
		assert.Equal(t, 23, res.Total)
		for _, row := range res.Data {
			seen[row.Time]++
		}
		total += len(res.Data)
	}
	assert.Equal(t, 23, total, "pages must partition all rows")
	for ts, count := range seen {
		assert.Equal(t, 1, count, "timestamp %s appeared %d times", ts, count)
	}

	// page past the end: empty data, correct total, no error
	res, err := svc.History(context.Background(), "n1", "-1h", "", 6, limit)
	require.NoError(t, err)
	assert.Equal(t, 23, res.Total)
	assert.Empty(t, res.Data)
}

func TestHistoryRejectsBadInput(t *testing.T) {
	svc := New(&stubStore{}, testLogger())
	cases := []struct {
		name   string
		nodeID string
		start  string
		page   int
		limit  int
	}{
		{"empty node", "", "-1h", 1, 10},
		{"zero page", "n1", "-1h", 0, 10},
		{"negative page", "n1", "-1h", -3, 10},
		{"zero limit", "n1", "-1h", 1, 0},
		{"negative limit", "n1", "-1h", 1, -10},
		{"bad window", "n1", "last tuesday", 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.History(context.Background(), tc.nodeID, tc.start, "", tc.page, tc.limit)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
		})
	}
}

func TestHistoryStoreFailureReturnsEmptyPage(t *testing.T) {
	st := &stubStore{rowsErr: &store.StoreError{Op: "query", Err: errors.New("connection refused")}}
	svc := New(st, testLogger())

	page, err := svc.History(context.Background(), "n1", "-1h", "", 2, 10)
	require.NoError(t, err, "store failure must not surface")
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Empty(t, page.Data)
}

func TestLatestStatusFormatsUTC(t *testing.T) {
	st := &stubStore{rows: []store.Row{
		{
			Time:   time.Date(2026, 8, 31, 9, 30, 0, 0, time.FixedZone("", 0)),
			NodeID: "LAB_SIM_01",
			Fields: map[string]float64{"power": 920.5, "voltage": 231.2},
		},
		{
			Time:   time.Date(2026, 8, 31, 9, 29, 0, 0, time.UTC),
			NodeID: "CLASS_SIM_01",
			Fields: map[string]float64{"power": 400, "voltage": 229.8},
		},
	}}
	svc := New(st, testLogger())

	statuses, err := svc.LatestStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "CLASS_SIM_01", statuses[0].NodeID)
	assert.Equal(t, "LAB_SIM_01", statuses[1].NodeID)
	assert.Equal(t, "2026-08-31T09:30:00Z", statuses[1].Time, "time must carry the Z designator")
	assert.Equal(t, 920.5, statuses[1].Power)
	assert.Equal(t, store.PivotByNode, st.lastQuery.Pivot)
	assert.True(t, st.lastQuery.Last)
	assert.Equal(t, "-1d", st.lastQuery.Start)
}

func TestLatestStatusEmptyWindow(t *testing.T) {
	svc := New(&stubStore{}, testLogger())
	statuses, err := svc.LatestStatus(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)
}

func TestCampusSummary(t *testing.T) {
	st := &stubStore{scalars: map[string]float64{"-1d": 400}}
	svc := New(st, testLogger())

	summary, err := svc.CampusSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 400.0, summary.TotalPower)
	assert.True(t, st.lastQuery.Last)
	assert.True(t, st.lastQuery.Group)
	assert.True(t, st.lastQuery.Sum)
	assert.Equal(t, []string{"power"}, st.lastQuery.Fields)
}

func TestCampusSummaryNoNodes(t *testing.T) {
	svc := New(&stubStore{}, testLogger())
	summary, err := svc.CampusSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.TotalPower)
}

func TestCostSummaryIntegralMath(t *testing.T) {
	// 1000 W sustained for one hour = 3.6e6 J = 1 kWh; at 8.0/kWh → 8.00.
	joules := 3.6e6
	st := &stubStore{scalars: map[string]float64{
		"-1d":  joules,
		"-7d":  joules * 7,
		"-30d": joules * 30,
	}}
	svc := New(st, testLogger())

	costs, err := svc.CostSummary(context.Background(), 8.0)
	require.NoError(t, err)
	assert.Equal(t, 8.00, costs.Daily)
	assert.Equal(t, 56.00, costs.Weekly)
	assert.Equal(t, 240.00, costs.Monthly)
	assert.Equal(t, "1s", st.lastQuery.IntegralUnit)
}

func TestCostSummaryRoundsToTwoDecimals(t *testing.T) {
	st := &stubStore{scalars: map[string]float64{"-1d": 1_234_567}}
	svc := New(st, testLogger())

	costs, err := svc.CostSummary(context.Background(), 8.0)
	require.NoError(t, err)
	// 1234567 J = 0.342935... kWh → 2.743... → 2.74
	assert.Equal(t, 2.74, costs.Daily)
}

func TestCostSummaryWindowFaultIsolation(t *testing.T) {
	joules := 3.6e6
	st := &stubStore{
		scalars: map[string]float64{"-1d": joules, "-7d": joules * 7},
		scalarErr: map[string]error{
			"-30d": &store.StoreError{Op: "query", Err: fmt.Errorf("timeout")},
		},
	}
	svc := New(st, testLogger())

	costs, err := svc.CostSummary(context.Background(), 8.0)
	require.NoError(t, err, "a failing window must not abort the call")
	assert.Equal(t, 8.00, costs.Daily)
	assert.Equal(t, 56.00, costs.Weekly)
	assert.Equal(t, 0.0, costs.Monthly)
}

func TestCostSummaryDefaultTariff(t *testing.T) {
	st := &stubStore{scalars: map[string]float64{"-1d": 3.6e6}}
	svc := New(st, testLogger())

	costs, err := svc.CostSummary(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 8.00, costs.Daily, "zero tariff falls back to the default rate")
}

func TestDegradedModeZeroDefaults(t *testing.T) {
	// A degraded store yields no rows and no errors; every view must
	// return its documented zero shape.
	svc := New(&stubStore{}, testLogger())
	ctx := context.Background()

	page, err := svc.History(ctx, "n1", "-1h", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Data)

	statuses, err := svc.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	summary, err := svc.CampusSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.TotalPower)

	costs, err := svc.CostSummary(ctx, 8.0)
	require.NoError(t, err)
	assert.Equal(t, models.CostSummaryResponse{}, costs)
}
