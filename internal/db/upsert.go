package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a batch upsert.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	BatchSize    int      // rows per INSERT statement; 0 = 500
}

// UpsertSQL builds an INSERT ... VALUES ... ON CONFLICT statement for n rows.
func UpsertSQL(cfg UpsertConfig, n int) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflict := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflict[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflict[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", sanitizeTable(cfg.Table), quoteAndJoin(cfg.Columns))
	arg := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cfg.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s)", quoteAndJoin(cfg.ConflictKeys))
	if len(updateCols) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String(), nil
	}
	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		id := pgx.Identifier{col}.Sanitize()
		sets[i] = id + " = EXCLUDED." + id
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String(), nil
}

// Execer runs a statement. pgx.Tx and Pool both satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// BulkUpsert writes rows in batches inside one transaction.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if err := validateRows(cfg, rows); err != nil || len(rows) == 0 {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	total, err := UpsertTx(ctx, tx, cfg, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return total, nil
}

// UpsertTx writes rows in batches on an existing transaction. The caller
// owns commit and rollback.
func UpsertTx(ctx context.Context, tx Execer, cfg UpsertConfig, rows [][]any) (int64, error) {
	if err := validateRows(cfg, rows); err != nil || len(rows) == 0 {
		return 0, err
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}

	var total int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		chunk := rows[start:end]

		query, _ := UpsertSQL(cfg, len(chunk))
		args := make([]any, 0, len(chunk)*len(cfg.Columns))
		for _, row := range chunk {
			args = append(args, row...)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "db: upsert: %s rows %d-%d", cfg.Table, start, end)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func validateRows(cfg UpsertConfig, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := UpsertSQL(cfg, 1); err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) != len(cfg.Columns) {
			return eris.Errorf("db: upsert: row %d has %d values, want %d", i, len(row), len(cfg.Columns))
		}
	}
	return nil
}

// sanitizeTable handles schema-qualified names like "area_compare.neighbourhoods".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
