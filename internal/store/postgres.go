package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nodescope/area-compare/internal/db"
	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	area_a     TEXT NOT NULL,
	area_b     TEXT NOT NULL,
	profile    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);

CREATE TABLE IF NOT EXISTS neighbourhood_cache (
	city_key   TEXT PRIMARY KEY,
	city       TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS neighbourhood_areas (
	city_key      TEXT NOT NULL REFERENCES neighbourhood_cache(city_key) ON DELETE CASCADE,
	area_id       TEXT NOT NULL,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	color         TEXT NOT NULL DEFAULT '',
	boundary      BYTEA NOT NULL,
	sample_points JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (city_key, area_id)
);

CREATE INDEX IF NOT EXISTS idx_neighbourhood_cache_expires_at ON neighbourhood_cache(expires_at);
`

var areaUpsert = db.UpsertConfig{
	Table:        "neighbourhood_areas",
	Columns:      []string{"city_key", "area_id", "position", "name", "color", "boundary", "sample_points"},
	ConflictKeys: []string{"city_key", "area_id"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run = newRun(run, uuid.NewString)

	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal profile")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, area_a, area_b, profile, status, error, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.AreaIDs[0], run.AreaIDs[1], profileJSON, string(run.Status), run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, area_a, area_b, profile, status, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, area_a, area_b, profile, status, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AreaID != "" {
		query += fmt.Sprintf(` AND (area_a = $%d OR area_b = $%d)`, argIdx, argIdx)
		args = append(args, filter.AreaID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetNeighbourhoods(ctx context.Context, city string) (*CachedNeighbourhoods, error) {
	c := CachedNeighbourhoods{CityKey: geo.CityKey(city)}
	err := s.pool.QueryRow(ctx,
		`SELECT city, fetched_at, expires_at FROM neighbourhood_cache WHERE city_key = $1 AND expires_at > now()`,
		c.CityKey,
	).Scan(&c.City, &c.FetchedAt, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get neighbourhoods")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT area_id, name, color, boundary, sample_points FROM neighbourhood_areas WHERE city_key = $1 ORDER BY position`,
		c.CityKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list neighbourhood areas")
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Area
		var boundary, samples []byte
		if err := rows.Scan(&a.ID, &a.Name, &a.Color, &boundary, &samples); err != nil {
			return nil, eris.Wrap(err, "postgres: scan neighbourhood area")
		}
		if a.Boundary, err = geo.DecodeBoundary(boundary); err != nil {
			return nil, eris.Wrapf(err, "postgres: area %s", a.ID)
		}
		if len(samples) > 0 {
			if err := json.Unmarshal(samples, &a.SamplePoints); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal sample points for %s", a.ID)
			}
		}
		c.Areas = append(c.Areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: neighbourhood areas iterate")
	}
	return &c, nil
}

func (s *PostgresStore) PutNeighbourhoods(ctx context.Context, city string, areas []model.Area, ttl time.Duration) error {
	key := geo.CityKey(city)
	now := time.Now().UTC()

	rows := make([][]any, 0, len(areas))
	for i, a := range areas {
		wkb, err := geo.EncodeBoundary(a.Boundary)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode area %s", a.ID)
		}
		samples, err := json.Marshal(a.SamplePoints)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal sample points for %s", a.ID)
		}
		rows = append(rows, []any{key, a.ID, i, a.Name, a.Color, wkb, samples})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: put neighbourhoods: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO neighbourhood_cache (city_key, city, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (city_key) DO UPDATE SET city = EXCLUDED.city, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
		key, geo.CityDisplay(city), now, now.Add(ttl),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: put neighbourhoods")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM neighbourhood_areas WHERE city_key = $1`, key); err != nil {
		return eris.Wrap(err, "postgres: clear neighbourhood areas")
	}
	if _, err := db.UpsertTx(ctx, tx, areaUpsert, rows); err != nil {
		return eris.Wrap(err, "postgres: upsert neighbourhood areas")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: put neighbourhoods: commit tx")
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredNeighbourhoods(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM neighbourhood_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired neighbourhoods")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var profileJSON []byte
	var status string
	if err := row.Scan(&r.ID, &r.AreaIDs[0], &r.AreaIDs[1], &profileJSON, &status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(profileJSON, &r.Profile); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	return &r, nil
}
