package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	area_a     TEXT NOT NULL,
	area_b     TEXT NOT NULL,
	profile    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS neighbourhood_cache (
	city_key   TEXT PRIMARY KEY,
	city       TEXT NOT NULL,
	areas      TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_neighbourhood_cache_expires_at ON neighbourhood_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run = newRun(run, uuid.NewString)

	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal profile")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, area_a, area_b, profile, status, error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.AreaIDs[0], run.AreaIDs[1], string(profileJSON), string(run.Status), run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, area_a, area_b, profile, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, area_a, area_b, profile, status, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AreaID != "" {
		query += ` AND (area_a = ? OR area_b = ?)`
		args = append(args, filter.AreaID, filter.AreaID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetNeighbourhoods(ctx context.Context, city string) (*CachedNeighbourhoods, error) {
	key := geo.CityKey(city)
	row := s.db.QueryRowContext(ctx,
		`SELECT city_key, city, areas, fetched_at, expires_at FROM neighbourhood_cache
		 WHERE city_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	)

	var c CachedNeighbourhoods
	var areasJSON string
	err := row.Scan(&c.CityKey, &c.City, &areasJSON, &c.FetchedAt, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get neighbourhoods")
	}
	if err := json.Unmarshal([]byte(areasJSON), &c.Areas); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal areas")
	}
	return &c, nil
}

func (s *SQLiteStore) PutNeighbourhoods(ctx context.Context, city string, areas []model.Area, ttl time.Duration) error {
	now := time.Now().UTC()
	areasJSON, err := json.Marshal(areas)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal areas")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO neighbourhood_cache (city_key, city, areas, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (city_key) DO UPDATE SET city = excluded.city, areas = excluded.areas,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		geo.CityKey(city), geo.CityDisplay(city), string(areasJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put neighbourhoods")
}

func (s *SQLiteStore) DeleteExpiredNeighbourhoods(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM neighbourhood_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired neighbourhoods")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "sqlite: run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var profileJSON string

	err := row.Scan(&r.ID, &r.AreaIDs[0], &r.AreaIDs[1], &profileJSON, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(profileJSON), &r.Profile); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile")
	}
	return &r, nil
}
