// Package clickhouse stores alignment runs in ClickHouse. Schema and station
// metadata go through clickhouse-go; match rows are inserted column-wise over
// the native protocol with ch-go.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// BatchSize is the number of match rows sent per native insert.
const BatchSize = 100_000

// Options configures the connection.
type Options struct {
	Addr     string // host:port of the native protocol
	Database string
	Username string
	Password string
}

// Store is not safe for concurrent use; give each goroutine its own
// MatchWriter for parallel inserts.
type Store struct {
	opts    Options
	conn    driver.Conn
	matches *MatchWriter
}

// New connects both clients and creates the schema if needed.
func New(ctx context.Context, opts Options) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s := &Store{opts: opts, conn: conn}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.matches, err = DialMatchWriter(ctx, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.matches != nil {
		s.matches.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return tableFQN(s.opts.Database, name)
}

func tableFQN(database, name string) string {
	return fmt.Sprintf("%s.%s", database, name)
}

// Schema returns the DDL statements for a database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.stations (
			station_id String,
			network LowCardinality(String),
			sensor LowCardinality(String),
			name String,
			latitude Float64,
			longitude Float64,
			elevation Float64,
			depth_from Float64,
			depth_to Float64,
			landcover UInt16,
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY station_id`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.matches (
			run_id String,
			station_id String,
			orbit LowCardinality(String),
			t_s1 DateTime,
			vh Float64,
			vv Float64,
			angle Float64,
			t_sm DateTime,
			sm Float64
		) ENGINE = MergeTree
		ORDER BY (station_id, orbit, t_s1)`, database),
	}
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range Schema(s.opts.Database) {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return nil
}

// UpsertStations appends station rows; ReplacingMergeTree keeps the latest.
func (s *Store) UpsertStations(ctx context.Context, stations []station.Station) error {
	if len(stations) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table("stations")))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, st := range stations {
		err := batch.Append(
			st.ID, st.Network, st.Sensor, st.Name,
			st.Latitude, st.Longitude, st.Elevation,
			st.DepthFrom, st.DepthTo, uint16(st.LandCover), now,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append station %s: %w", st.ID, err)
		}
	}
	return batch.Send()
}

// InsertMatches sends rows in native batches of BatchSize.
func (s *Store) InsertMatches(ctx context.Context, runID string, rows []station.Row) error {
	if err := s.matches.Write(ctx, runID, rows); err != nil {
		return err
	}
	return s.matches.Flush(ctx)
}

// =============================================================================
// Native match writer
// =============================================================================

// MatchWriter streams match rows over one native connection, flushing every
// BatchSize rows. It is not safe for concurrent use.
type MatchWriter struct {
	conn  *ch.Client
	table string
	batch *MatchBatch
	rows  int
}

// DialMatchWriter opens a native connection for match inserts. The schema
// must already exist; New creates it.
func DialMatchWriter(ctx context.Context, opts Options) (*MatchWriter, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     opts.Addr,
		Database:    opts.Database,
		User:        opts.Username,
		Password:    opts.Password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse dial: %w", err)
	}
	return &MatchWriter{
		conn:  conn,
		table: tableFQN(opts.Database, "matches"),
		batch: NewMatchBatch(),
	}, nil
}

// Write buffers rows, sending a native insert whenever the batch fills.
func (w *MatchWriter) Write(ctx context.Context, runID string, rows []station.Row) error {
	for _, r := range rows {
		w.batch.Add(runID, r)
		if w.batch.Len() >= BatchSize {
			if err := w.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush sends any buffered rows.
func (w *MatchWriter) Flush(ctx context.Context) error {
	n := w.batch.Len()
	if err := flushBatch(ctx, w.conn, w.table, w.batch); err != nil {
		return err
	}
	w.rows += n
	w.batch.Reset()
	return nil
}

// Rows returns the number of rows sent so far.
func (w *MatchWriter) Rows() int {
	return w.rows
}

// Close closes the connection without flushing.
func (w *MatchWriter) Close() error {
	return w.conn.Close()
}

// =============================================================================
// Native match batch
// =============================================================================

// MatchBatch holds column data for native insert
type MatchBatch struct {
	RunID      *proto.ColStr
	StationID  *proto.ColStr
	Orbit      *proto.ColStr
	S1Time     *proto.ColDateTime
	VH         *proto.ColFloat64
	VV         *proto.ColFloat64
	Angle      *proto.ColFloat64
	GroundTime *proto.ColDateTime
	SM         *proto.ColFloat64
}

func NewMatchBatch() *MatchBatch {
	return &MatchBatch{
		RunID:      new(proto.ColStr),
		StationID:  new(proto.ColStr),
		Orbit:      new(proto.ColStr),
		S1Time:     new(proto.ColDateTime),
		VH:         new(proto.ColFloat64),
		VV:         new(proto.ColFloat64),
		Angle:      new(proto.ColFloat64),
		GroundTime: new(proto.ColDateTime),
		SM:         new(proto.ColFloat64),
	}
}

func (b *MatchBatch) Reset() {
	b.RunID.Reset()
	b.StationID.Reset()
	b.Orbit.Reset()
	b.S1Time.Reset()
	b.VH.Reset()
	b.VV.Reset()
	b.Angle.Reset()
	b.GroundTime.Reset()
	b.SM.Reset()
}

func (b *MatchBatch) Len() int {
	return b.RunID.Rows()
}

func (b *MatchBatch) Input() proto.Input {
	return proto.Input{
		{Name: "run_id", Data: b.RunID},
		{Name: "station_id", Data: b.StationID},
		{Name: "orbit", Data: b.Orbit},
		{Name: "t_s1", Data: b.S1Time},
		{Name: "vh", Data: b.VH},
		{Name: "vv", Data: b.VV},
		{Name: "angle", Data: b.Angle},
		{Name: "t_sm", Data: b.GroundTime},
		{Name: "sm", Data: b.SM},
	}
}

func (b *MatchBatch) Add(runID string, r station.Row) {
	b.RunID.Append(runID)
	b.StationID.Append(r.StationID)
	b.Orbit.Append(string(r.Orbit))
	b.S1Time.Append(r.SatelliteTime)
	b.VH.Append(r.VH)
	b.VV.Append(r.VV)
	b.Angle.Append(r.Angle)
	b.GroundTime.Append(r.GroundTime)
	b.SM.Append(r.GroundValue)
}

func flushBatch(ctx context.Context, conn *ch.Client, tableFQN string, batch *MatchBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (run_id, station_id, orbit, t_s1, vh, vv, angle, t_sm, sm) VALUES", tableFQN)
	return conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	})
}
