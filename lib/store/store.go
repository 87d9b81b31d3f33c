// Package store keeps a history of normalized observations across runs in
// sqlite, locally or on a libsql server.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"rarebird/lib/observation"
	"rarebird/lib/telemetry"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var tracer = telemetry.Tracer("rarebird.lib.store")

type Store struct {
	db *sql.DB
}

// Run summarizes one saved batch.
type Run struct {
	ID        string
	FetchedAt time.Time
	Records   int
}

// Record is a stored observation with the run that last wrote it.
type Record struct {
	RunID     string
	FetchedAt time.Time
	observation.Observation
}

func NewRunID() string {
	return uuid.NewString()
}

func isRemote(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// Open connects to dsn. Remote libsql urls go through the libsql driver,
// anything else is a local sqlite path (or ":memory:").
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}

	if isRemote(dsn) {
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
		return openOwned(ctx, db, Schema)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite only supports one writer at a time
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return openOwned(ctx, db, Schema)
}

// openOwned takes ownership of db, closing it when the store cannot be set up.
func openOwned(ctx context.Context, db *sql.DB, schema string) (*Store, error) {
	s, err := newStore(ctx, db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database, creating the schema if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	return newStore(ctx, db, Schema)
}

func newStore(ctx context.Context, db *sql.DB, schema string) (*Store, error) {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const upsertObservation = `insert into observation (
    run_id, submission_id, species_code, common_name, scientific_name,
    location_id, location_name, observed_at, count, latitude, longitude,
    location_private, reviewed, valid, observer_name, has_media
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (submission_id, species_code) do update set
    run_id = excluded.run_id,
    common_name = excluded.common_name,
    scientific_name = excluded.scientific_name,
    location_id = excluded.location_id,
    location_name = excluded.location_name,
    observed_at = excluded.observed_at,
    count = excluded.count,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    location_private = excluded.location_private,
    reviewed = excluded.reviewed,
    valid = excluded.valid,
    observer_name = excluded.observer_name,
    has_media = excluded.has_media`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullCount(c observation.Count) sql.NullInt64 {
	n, ok := c.Value()
	return sql.NullInt64{Int64: int64(n), Valid: ok}
}

// Save records one batch under runID. Observations that share a submission
// id and species with an earlier run replace it.
func (s *Store) Save(ctx context.Context, runID string, fetchedAt time.Time, obs []observation.Observation) error {
	ctx, span := tracer.Start(ctx, "Save")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID), attribute.Int("records", len(obs)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"insert into run (id, fetched_at, records) values (?, ?, ?)",
		runID, fetchedAt.Unix(), len(obs),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert run: %w", err)
	}

	for _, o := range obs {
		_, err = tx.ExecContext(
			ctx, upsertObservation,
			runID,
			nullString(o.SubmissionID),
			o.SpeciesCode,
			o.CommonName,
			o.ScientificName,
			o.LocationID,
			o.LocationName,
			o.ObservedAt,
			nullCount(o.Count),
			nullFloat(o.Latitude),
			nullFloat(o.Longitude),
			o.LocationPrivate,
			o.Reviewed,
			o.Valid,
			o.ObserverName,
			o.HasMedia,
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.DebugContext(ctx, "saved run", "run_id", runID, "records", len(obs))
	return nil
}

const selectRecent = `select
    o.run_id, r.fetched_at, o.submission_id, o.species_code, o.common_name,
    o.scientific_name, o.location_id, o.location_name, o.observed_at, o.count,
    o.latitude, o.longitude, o.location_private, o.reviewed, o.valid,
    o.observer_name, o.has_media
from observation o
join run r on r.id = o.run_id
order by r.fetched_at desc, o.id desc
limit ?`

// Recent returns up to limit observations, most recently fetched first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "Recent")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec          Record
			fetchedAt    int64
			submissionID sql.NullString
			count        sql.NullInt64
			lat, lng     sql.NullFloat64
		)
		err = rows.Scan(
			&rec.RunID,
			&fetchedAt,
			&submissionID,
			&rec.SpeciesCode,
			&rec.CommonName,
			&rec.ScientificName,
			&rec.LocationID,
			&rec.LocationName,
			&rec.ObservedAt,
			&count,
			&lat,
			&lng,
			&rec.LocationPrivate,
			&rec.Reviewed,
			&rec.Valid,
			&rec.ObserverName,
			&rec.HasMedia,
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		rec.FetchedAt = time.Unix(fetchedAt, 0)
		rec.SubmissionID = submissionID.String
		rec.Count = observation.UnknownCount()
		if count.Valid {
			rec.Count = observation.KnownCount(int(count.Int64))
		}
		if lat.Valid {
			rec.Latitude = &lat.Float64
		}
		if lng.Valid {
			rec.Longitude = &lng.Float64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Runs lists every saved run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "Runs")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "select id, fetched_at, records from run order by fetched_at desc, rowid desc")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			fetchedAt int64
		)
		err = rows.Scan(&run.ID, &fetchedAt, &run.Records)
		if err != nil {
			return nil, err
		}
		run.FetchedAt = time.Unix(fetchedAt, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
