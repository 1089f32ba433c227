package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"campuswatt/internal/models"
)

// Measurement is the single measurement all node readings are written to.
const Measurement = "power_measurement"

// StoreError wraps any failure during a store write or query.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Row is one result row of a range query. For pivoted queries Fields holds
// one entry per sensor field column.
type Row struct {
	Time   time.Time
	NodeID string
	Fields map[string]float64
}

// Store is the contract the ingestor and query service consume: append a
// point, run a range query, nothing else.
type Store interface {
	WriteReading(ctx context.Context, r models.Reading) error
	QueryRows(ctx context.Context, q Query) ([]Row, error)
	QueryScalar(ctx context.Context, q Query) (float64, error)
	Ping(ctx context.Context) error
	Close()
}

// InfluxStore talks to InfluxDB 2.x. When InfluxDB is unreachable at
// startup the store constructs in degraded mode: the client stays nil and
// every operation returns its zero value instead of failing, so the rest
// of the process keeps running.
type InfluxStore struct {
	client influxdb2.Client
	org    string
	bucket string
	log    *slog.Logger
}

// New connects to InfluxDB and probes its health. It never fails: an
// unreachable or unconfigured store yields a degraded InfluxStore.
func New(url, token, org, bucket string, logger *slog.Logger) *InfluxStore {
	s := &InfluxStore{org: org, bucket: bucket, log: logger}
	if url == "" {
		logger.Warn("influxdb url not configured, store running in degraded mode")
		return s
	}
	client := influxdb2.NewClient(url, token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		logger.Warn("influxdb unreachable, store running in degraded mode", "url", url, "err", err)
		client.Close()
		return s
	}
	if health.Status != "pass" {
		logger.Warn("influxdb health check failed, store running in degraded mode", "status", health.Status)
		client.Close()
		return s
	}
	logger.Info("connected to influxdb", "url", url, "org", org, "bucket", bucket)
	s.client = client
	return s
}

// ready is the single degraded-mode check every operation goes through.
func (s *InfluxStore) ready() bool {
	return s != nil && s.client != nil
}

// WriteReading appends one point. Writes are dropped silently in degraded
// mode; duplicate (node_id, timestamp) pairs produce two points.
func (s *InfluxStore) WriteReading(ctx context.Context, r models.Reading) error {
	if !s.ready() {
		s.log.Debug("skipping write, store unavailable", "node_id", r.NodeID)
		return nil
	}
	p := influxdb2.NewPoint(
		Measurement,
		map[string]string{"node_id": r.NodeID},
		map[string]interface{}{
			"voltage":      r.Voltage,
			"current":      r.Current,
			"power":        r.Power,
			"power_factor": r.PowerFactor,
			"frequency":    r.Frequency,
		},
		time.Unix(r.Timestamp, 0),
	)
	writeAPI := s.client.WriteAPIBlocking(s.org, s.bucket)
	if err := writeAPI.WritePoint(ctx, p); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

// resultMetaKeys are Flux record keys that are never sensor fields.
var resultMetaKeys = map[string]struct{}{
	"result":       {},
	"table":        {},
	"_start":       {},
	"_stop":        {},
	"_time":        {},
	"_value":       {},
	"_field":       {},
	"_measurement": {},
	"node_id":      {},
}

// QueryRows executes q and collects every record. In degraded mode it
// returns no rows and no error.
func (s *InfluxStore) QueryRows(ctx context.Context, q Query) ([]Row, error) {
	if !s.ready() {
		return nil, nil
	}
	flux, err := q.Flux(s.bucket)
	if err != nil {
		return nil, err
	}
	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	var rows []Row
	for result.Next() {
		record := result.Record()
		row := Row{Time: record.Time(), Fields: make(map[string]float64)}
		if id, ok := record.ValueByKey("node_id").(string); ok {
			row.NodeID = id
		}
		for key, value := range record.Values() {
			if _, meta := resultMetaKeys[key]; meta {
				continue
			}
			switch v := value.(type) {
			case float64:
				row.Fields[key] = v
			case int64:
				row.Fields[key] = float64(v)
			}
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return rows, nil
}

// QueryScalar executes an aggregating query and returns the single value
// of its first record, or 0 when nothing matched.
func (s *InfluxStore) QueryScalar(ctx context.Context, q Query) (float64, error) {
	if !s.ready() {
		return 0, nil
	}
	flux, err := q.Flux(s.bucket)
	if err != nil {
		return 0, err
	}
	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return 0, &StoreError{Op: "query", Err: err}
	}
	var value float64
	if result.Next() {
		switch v := result.Record().Value().(type) {
		case float64:
			value = v
		case int64:
			value = float64(v)
		}
	}
	if err := result.Err(); err != nil {
		return 0, &StoreError{Op: "query", Err: err}
	}
	return value, nil
}

// Ping reports current store health.
func (s *InfluxStore) Ping(ctx context.Context) error {
	if !s.ready() {
		return &StoreError{Op: "ping", Err: fmt.Errorf("store unavailable")}
	}
	health, err := s.client.Health(ctx)
	if err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	if health.Status != "pass" {
		return &StoreError{Op: "ping", Err: fmt.Errorf("health status %s", health.Status)}
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxStore) Close() {
	if s.ready() {
		s.client.Close()
	}
}
