// Package sqlite implements the observation store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   INTEGER NOT NULL,
	temperature REAL    NOT NULL,
	humidity    REAL    NOT NULL,
	pressure    REAL    NOT NULL,
	wind_speed  REAL    NOT NULL,
	rainfall    REAL    NOT NULL DEFAULT 0,
	source      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_weather_records_timestamp ON weather_records (timestamp, id);
CREATE INDEX IF NOT EXISTS idx_weather_records_source ON weather_records (source);`

const selectColumns = `SELECT id, timestamp, temperature, humidity, pressure, wind_speed, rainfall, source FROM weather_records`

// Store implements domain.RecordStore. All writes go through a single
// connection and a store mutex, so replaces of any source are serialized.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not enable WAL journal", "error", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("observation store opened", "backend", "sqlite", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) ReplaceSource(ctx context.Context, source domain.Source, records []domain.WeatherRecord) error {
	if len(records) == 0 {
		return domain.NewError(domain.KindStorage, "replace "+string(source), domain.ErrEmptyBatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin replace", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `DELETE FROM weather_records WHERE source = ?`, string(source))
	if err != nil {
		return storageErr("delete "+string(source), err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO weather_records
		(timestamp, temperature, humidity, pressure, wind_speed, rainfall, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare insert", err)
	}
	defer stmt.Close()

	for i := range records {
		r := records[i]
		nanos, err := unixNanos(r.Timestamp)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, nanos,
			r.Temperature, r.Humidity, r.Pressure, r.WindSpeed, r.Rainfall, string(source)); err != nil {
			return storageErr("insert "+string(source), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit replace", err)
	}

	deleted, _ := res.RowsAffected()
	s.logger.Debug("source replaced", "source", source, "deleted", deleted, "inserted", len(records))
	return nil
}

func (s *Store) Append(ctx context.Context, record domain.WeatherRecord) (domain.WeatherRecord, error) {
	nanos, err := unixNanos(record.Timestamp)
	if err != nil {
		return domain.WeatherRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO weather_records
		(timestamp, temperature, humidity, pressure, wind_speed, rainfall, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nanos, record.Temperature, record.Humidity,
		record.Pressure, record.WindSpeed, record.Rainfall, string(record.Source))
	if err != nil {
		return domain.WeatherRecord{}, storageErr("append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.WeatherRecord{}, storageErr("append", err)
	}
	record.ID = id
	record.Timestamp = record.Timestamp.UTC()
	return record, nil
}

func (s *Store) Query(ctx context.Context, q domain.RecordQuery) ([]domain.WeatherRecord, error) {
	var (
		where []string
		args  []any
	)
	if len(q.Include) > 0 {
		where = append(where, "source IN ("+placeholders(len(q.Include))+")")
		args = appendSources(args, q.Include)
	}
	if len(q.Exclude) > 0 {
		where = append(where, "source NOT IN ("+placeholders(len(q.Exclude))+")")
		args = appendSources(args, q.Exclude)
	}

	var b strings.Builder
	b.WriteString(selectColumns)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.Order == domain.Descending {
		b.WriteString(" ORDER BY timestamp DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY timestamp ASC, id ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()

	var out []domain.WeatherRecord
	for rows.Next() {
		var (
			r      domain.WeatherRecord
			nanos  int64
			source string
		)
		if err := rows.Scan(&r.ID, &nanos, &r.Temperature, &r.Humidity, &r.Pressure, &r.WindSpeed, &r.Rainfall, &source); err != nil {
			return nil, storageErr("scan", err)
		}
		r.Timestamp = time.Unix(0, nanos).UTC()
		r.Source = domain.Source(source)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", err)
	}
	return out, nil
}

func (s *Store) Latest(ctx context.Context, n int) ([]domain.WeatherRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.Query(ctx, domain.RecordQuery{Order: domain.Descending, Limit: n})
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite not reachable: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func appendSources(args []any, sources []domain.Source) []any {
	for _, src := range sources {
		args = append(args, string(src))
	}
	return args
}

// unixNanos encodes t for the INTEGER timestamp column.
func unixNanos(t time.Time) (int64, error) {
	if !domain.StorableTime(t) {
		return 0, domain.NewError(domain.KindValidation, "encode timestamp", fmt.Errorf("%s out of range", t.UTC().Format(time.RFC3339)))
	}
	return t.UTC().UnixNano(), nil
}

func storageErr(op string, err error) error {
	return domain.NewError(domain.KindStorage, op, err)
}
