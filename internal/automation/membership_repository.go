package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/datafile"
)

// MembershipRepository persists the automation membership set.
type MembershipRepository interface {
	// Load returns every saved member. No saved data yields an empty slice.
	Load(ctx context.Context) ([]host.EntityID, error)

	// Save replaces the saved set.
	Save(ctx context.Context, ids []host.EntityID) error
}

// SQLiteMembershipRepository implements MembershipRepository using SQLite.
type SQLiteMembershipRepository struct {
	db *sql.DB
}

// NewSQLiteMembershipRepository creates a new SQLite-backed repository.
func NewSQLiteMembershipRepository(db *sql.DB) *SQLiteMembershipRepository {
	return &SQLiteMembershipRepository{db: db}
}

// Load retrieves every member ordered by vehicle id.
func (r *SQLiteMembershipRepository) Load(ctx context.Context) ([]host.EntityID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT vehicle_id FROM automation_members ORDER BY vehicle_id")
	if err != nil {
		return nil, fmt.Errorf("querying automation members: %w", err)
	}
	defer rows.Close()

	ids := []host.EntityID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning automation member: %w", err)
		}
		ids = append(ids, host.EntityID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation members: %w", err)
	}
	return ids, nil
}

// Save replaces the members inside one transaction.
func (r *SQLiteMembershipRepository) Save(ctx context.Context, ids []host.EntityID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM automation_members"); err != nil {
		return fmt.Errorf("clearing automation members: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO automation_members (vehicle_id) VALUES (?)", int64(id)); err != nil { //nolint:gosec // entity ids fit in int64
			return fmt.Errorf("inserting automation member %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing automation members: %w", err)
	}
	return nil
}

// membershipFileKey is the global data file holding the member list.
const membershipFileKey = "railrunner"

type membershipDocument struct {
	AutomatedVehicles []host.EntityID `json:"automated_vehicles"`
}

// FileMembershipRepository implements MembershipRepository with a JSON file.
type FileMembershipRepository struct {
	files *datafile.Store
}

// NewFileMembershipRepository creates a repository writing under files.
func NewFileMembershipRepository(files *datafile.Store) *FileMembershipRepository {
	return &FileMembershipRepository{files: files}
}

// Load reads the member file. A missing file means no members.
func (r *FileMembershipRepository) Load(_ context.Context) ([]host.EntityID, error) {
	var doc membershipDocument
	if err := r.files.ReadObject(membershipFileKey, &doc); err != nil {
		if errors.Is(err, datafile.ErrNotFound) {
			return []host.EntityID{}, nil
		}
		return nil, fmt.Errorf("reading membership file: %w", err)
	}
	if doc.AutomatedVehicles == nil {
		doc.AutomatedVehicles = []host.EntityID{}
	}
	return doc.AutomatedVehicles, nil
}

// Save rewrites the member file.
func (r *FileMembershipRepository) Save(_ context.Context, ids []host.EntityID) error {
	doc := membershipDocument{AutomatedVehicles: ids}
	if doc.AutomatedVehicles == nil {
		doc.AutomatedVehicles = []host.EntityID{}
	}
	if err := r.files.WriteObject(membershipFileKey, doc); err != nil {
		return fmt.Errorf("writing membership file: %w", err)
	}
	return nil
}
