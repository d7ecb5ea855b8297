package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coffee_roaster/internal/models"
)

type RoastSQLite struct {
	db *sql.DB
}

func NewRoastSQLite(db *sql.DB) *RoastSQLite { return &RoastSQLite{db: db} }

var _ RoastRepo = (*RoastSQLite)(nil)

// ErrRoastNotFound is returned by Finish for an unknown roast id.
var ErrRoastNotFound = errors.New("roast not found")

const (
	roastColumns = `id, name, automatic, strategy, profile_path, final_bean_temp, started_at, finished_at, export_path`

	insertRoastSQL = `INSERT INTO roasts (` + roastColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)`

	finishRoastSQL = `UPDATE roasts SET finished_at = ?, export_path = ? WHERE id = ?`

	selectRoastSQL = `SELECT ` + roastColumns + ` FROM roasts WHERE id = ?`

	listRoastsSQL = `SELECT ` + roastColumns + ` FROM roasts ORDER BY started_at DESC LIMIT ?`
)

// Create inserts a new, unfinished roast.
func (r *RoastSQLite) Create(ctx context.Context, ro models.Roast) error {
	started := ro.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertRoastSQL,
		ro.ID,
		ro.Name,
		ro.Automatic,
		nullString(ro.Strategy),
		nullString(ro.ProfilePath),
		ro.FinalBeanTemp,
		started.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert roast %q: %w", ro.ID, err)
	}
	return nil
}

// Finish stamps the end time and the export file of a roast.
func (r *RoastSQLite) Finish(ctx context.Context, id string, finishedAt time.Time, exportPath string) error {
	res, err := r.db.ExecContext(ctx, finishRoastSQL, finishedAt.UTC(), nullString(exportPath), id)
	if err != nil {
		return fmt.Errorf("finish roast %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish roast %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRoastNotFound, id)
	}
	return nil
}

// Get returns one roast, or (nil, nil) if it does not exist.
func (r *RoastSQLite) Get(ctx context.Context, id string) (*models.Roast, error) {
	ro, err := scanRoast(r.db.QueryRowContext(ctx, selectRoastSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select roast %q: %w", id, err)
	}
	return &ro, nil
}

// List returns the most recent roasts first.
func (r *RoastSQLite) List(ctx context.Context, limit int) ([]models.Roast, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listRoastsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list roasts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Roast, 0, limit)
	for rows.Next() {
		ro, err := scanRoast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roast: %w", err)
		}
		out = append(out, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRoast(row scanner) (models.Roast, error) {
	var (
		ro                            models.Roast
		strategy, profile, exportPath sql.NullString
		finalTemp                     sql.NullInt64
		finished                      sql.NullTime
	)
	if err := row.Scan(&ro.ID, &ro.Name, &ro.Automatic, &strategy, &profile, &finalTemp,
		&ro.StartedAt, &finished, &exportPath); err != nil {
		return models.Roast{}, err
	}
	ro.Strategy = strategy.String
	ro.ProfilePath = profile.String
	ro.FinalBeanTemp = int(finalTemp.Int64)
	ro.ExportPath = exportPath.String
	ro.StartedAt = ro.StartedAt.UTC()
	if finished.Valid {
		t := finished.Time.UTC()
		ro.FinishedAt = &t
	}
	return ro, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
