// Package audit records who changed the railway: trigger edits and
// automation toggles, whether they came from the REST API or from a
// command typed in the host world.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subjects.
const (
	SubjectTrigger = "trigger"
	SubjectVehicle = "vehicle"
)

// Sources.
const (
	SourceAPI     = "api"
	SourceCommand = "command"
)

// ErrIncomplete is returned for an entry missing its action, subject or source.
var ErrIncomplete = errors.New("incomplete audit entry")

// timeLayout sorts lexically in the created_at column.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is a single audit trail record.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Subject   string         `json:"subject"`
	SubjectID string         `json:"subject_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Source    string         `json:"source"`
	MapID     string         `json:"map_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Action    string    // optional: add, update, move, remove, toggle
	Subject   string    // optional: trigger or vehicle
	SubjectID string    // optional: a specific trigger or vehicle
	Actor     string    // optional: token subject or in-world caller
	Since     time.Time // optional: only entries at or after this instant
	Limit     int       // default 50, max 200
	Offset    int
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Recorder appends entries.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// Repository stores and queries the audit trail.
type Repository interface {
	Recorder
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps the audit trail in the audit_logs table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry.Action == "" || entry.Subject == "" || entry.Source == "" {
		return ErrIncomplete
	}
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	var details *string
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, subject, subject_id, actor, source, map_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.Subject,
		nullableString(entry.SubjectID), nullableString(entry.Actor),
		entry.Source, nullableString(entry.MapID), details,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	for _, c := range []struct {
		column string
		value  string
	}{
		{"action", filter.Action},
		{"subject", filter.Subject},
		{"subject_id", filter.SubjectID},
		{"actor", filter.Actor},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // WHERE built from fixed column names
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, action, subject, subject_id, actor, source, map_id, details, created_at FROM audit_logs " + //nolint:gosec // WHERE built from fixed column names
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var subjectID, actor, mapID, details sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Action, &e.Subject, &subjectID, &actor,
			&e.Source, &mapID, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.SubjectID = subjectID.String
		e.Actor = actor.String
		e.MapID = mapID.String
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				e.Details = m
			}
		}

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, createdAt); err != nil {
				return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
			}
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
