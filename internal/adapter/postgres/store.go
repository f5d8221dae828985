// Package postgres implements the observation store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
	id          BIGSERIAL PRIMARY KEY,
	timestamp   TIMESTAMPTZ      NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	humidity    DOUBLE PRECISION NOT NULL,
	pressure    DOUBLE PRECISION NOT NULL,
	wind_speed  DOUBLE PRECISION NOT NULL,
	rainfall    DOUBLE PRECISION NOT NULL DEFAULT 0,
	source      TEXT             NOT NULL,
	-- NaN sorts above Infinity, so these also reject NaN.
	CHECK (temperature > '-Infinity' AND temperature < 'Infinity'),
	CHECK (humidity > '-Infinity' AND humidity < 'Infinity'),
	CHECK (pressure > '-Infinity' AND pressure < 'Infinity'),
	CHECK (wind_speed > '-Infinity' AND wind_speed < 'Infinity'),
	CHECK (rainfall > '-Infinity' AND rainfall < 'Infinity')
);
CREATE INDEX IF NOT EXISTS idx_weather_records_timestamp ON weather_records (timestamp, id);
CREATE INDEX IF NOT EXISTS idx_weather_records_source ON weather_records (source);`

var copyColumns = []string{"timestamp", "temperature", "humidity", "pressure", "wind_speed", "rainfall", "source"}

// Store implements domain.RecordStore on a pgx connection pool. Replaces of
// the same source are serialized with a transaction-scoped advisory lock.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("observation store opened", "backend", "postgres")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) ReplaceSource(ctx context.Context, source domain.Source, records []domain.WeatherRecord) error {
	if len(records) == 0 {
		return domain.NewError(domain.KindStorage, "replace "+string(source), domain.ErrEmptyBatch)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin replace", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(source)); err != nil {
		return storageErr("lock "+string(source), err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM weather_records WHERE source = $1`, string(source))
	if err != nil {
		return storageErr("delete "+string(source), err)
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Timestamp.UTC(), r.Temperature, r.Humidity, r.Pressure, r.WindSpeed, r.Rainfall, string(source)}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"weather_records"}, copyColumns, pgx.CopyFromRows(rows)); err != nil {
		return storageErr("insert "+string(source), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit replace", err)
	}

	s.logger.Debug("source replaced", "source", source, "deleted", tag.RowsAffected(), "inserted", len(records))
	return nil
}

func (s *Store) Append(ctx context.Context, record domain.WeatherRecord) (domain.WeatherRecord, error) {
	record.Timestamp = record.Timestamp.UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO weather_records
		(timestamp, temperature, humidity, pressure, wind_speed, rainfall, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		record.Timestamp, record.Temperature, record.Humidity, record.Pressure,
		record.WindSpeed, record.Rainfall, string(record.Source)).Scan(&record.ID)
	if err != nil {
		return domain.WeatherRecord{}, storageErr("append", err)
	}
	return record, nil
}

func (s *Store) Query(ctx context.Context, q domain.RecordQuery) ([]domain.WeatherRecord, error) {
	var (
		where []string
		args  []any
	)
	if len(q.Include) > 0 {
		args = append(args, sourceStrings(q.Include))
		where = append(where, "source = ANY($"+strconv.Itoa(len(args))+")")
	}
	if len(q.Exclude) > 0 {
		args = append(args, sourceStrings(q.Exclude))
		where = append(where, "source <> ALL($"+strconv.Itoa(len(args))+")")
	}

	var b strings.Builder
	b.WriteString(`SELECT id, timestamp, temperature, humidity, pressure, wind_speed, rainfall, source FROM weather_records`)
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
		args = append(args, q.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()

	var out []domain.WeatherRecord
	for rows.Next() {
		var (
			r      domain.WeatherRecord
			source string
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.Humidity, &r.Pressure, &r.WindSpeed, &r.Rainfall, &source); err != nil {
			return nil, storageErr("scan", err)
		}
		r.Timestamp = r.Timestamp.UTC()
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

// CheckReadiness pings the pool.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres not reachable: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, len(sources))
	for i, src := range sources {
		out[i] = string(src)
	}
	return out
}

func storageErr(op string, err error) error {
	return domain.NewError(domain.KindStorage, op, err)
}
