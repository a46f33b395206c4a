package trigger

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository persists the trigger list of one map at a time.
// This abstraction allows the SQLite and data-file backends to be swapped,
// and lets tests run without either.
type Repository interface {
	// Load returns the saved triggers for mapID in their saved order.
	// A map with no saved triggers yields an empty slice and no error.
	Load(ctx context.Context, mapID string) ([]Record, error)

	// Save replaces every trigger saved for mapID.
	Save(ctx context.Context, mapID string, records []Record) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load retrieves the triggers of a map ordered by sort_order.
func (r *SQLiteRepository) Load(ctx context.Context, mapID string) ([]Record, error) {
	query := `
		SELECT id, pos_x, pos_y, pos_z, starts_automation, speed, track_selection
		FROM triggers
		WHERE map_id = ?
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var starts int
		var speed, track sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.Position.X,
			&rec.Position.Y,
			&rec.Position.Z,
			&starts,
			&speed,
			&track,
		); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		rec.StartsAutomation = starts != 0
		rec.Speed = speed.String
		rec.TrackSelection = track.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triggers: %w", err)
	}
	return records, nil
}

// Save replaces the triggers of a map inside one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, mapID string, records []Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM triggers WHERE map_id = ?", mapID); err != nil {
		return fmt.Errorf("clearing triggers: %w", err)
	}

	query := `
		INSERT INTO triggers (
			map_id, id, pos_x, pos_y, pos_z, starts_automation, speed, track_selection, sort_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			mapID,
			rec.ID,
			rec.Position.X,
			rec.Position.Y,
			rec.Position.Z,
			boolToInt(rec.StartsAutomation),
			nullableString(rec.Speed),
			nullableString(rec.TrackSelection),
			i,
		)
		if err != nil {
			return fmt.Errorf("inserting trigger %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing triggers: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
