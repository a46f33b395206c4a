package automation

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/datafile"
)

// setupTestDB creates an in-memory SQLite database with the membership schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Matches migrations/20260301_120100_automation_members.up.sql
	schema := `
		CREATE TABLE automation_members (
			vehicle_id INTEGER PRIMARY KEY,
			added_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestMembershipRepositories_RoundTrip(t *testing.T) {
	files, err := datafile.Open(t.TempDir())
	if err != nil {
		t.Fatalf("datafile.Open: %v", err)
	}
	repos := map[string]MembershipRepository{
		"sqlite": NewSQLiteMembershipRepository(setupTestDB(t)),
		"file":   NewFileMembershipRepository(files),
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load empty: %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("Load empty = %v", empty)
			}

			want := []host.EntityID{7, 1234567890123, 99}
			if err := repo.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !sameSet(got, want) {
				t.Errorf("round trip = %v, want %v", got, want)
			}

			if err := repo.Save(ctx, nil); err != nil {
				t.Fatalf("Save empty: %v", err)
			}
			got, err = repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("after clearing = %v", got)
			}
		})
	}
}

func sameSet(a, b []host.EntityID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[host.EntityID]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
	}
	for _, n := range set {
		if n != 0 {
			return false
		}
	}
	return true
}

func TestMembership_AddRemove(t *testing.T) {
	ctx := context.Background()
	repo := &memoryMembershipRepo{}
	m := NewMembership(repo)

	for _, id := range []host.EntityID{5, 2, 5} {
		if err := m.Add(ctx, id); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}
	if !reflect.DeepEqual(m.List(), []host.EntityID{2, 5}) {
		t.Errorf("List = %v", m.List())
	}
	if !reflect.DeepEqual(repo.ids, []host.EntityID{2, 5}) {
		t.Errorf("saved = %v", repo.ids)
	}

	if err := m.Remove(ctx, 2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := m.Remove(ctx, 2); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
	if m.Contains(2) || !m.Contains(5) || m.Len() != 1 {
		t.Errorf("after remove = %v", m.List())
	}

	reloaded := NewMembership(repo)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(reloaded.List(), m.List()) {
		t.Errorf("reloaded = %v, want %v", reloaded.List(), m.List())
	}
}

func TestMembership_FailedSaveLeavesSetUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := &memoryMembershipRepo{}
	m := NewMembership(repo)
	if err := m.Add(ctx, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	repo.failErr = errors.New("read-only")
	if err := m.Add(ctx, 2); err == nil {
		t.Error("Add succeeded with failing repository")
	}
	if err := m.Remove(ctx, 1); err == nil {
		t.Error("Remove succeeded with failing repository")
	}
	if !reflect.DeepEqual(m.List(), []host.EntityID{1}) {
		t.Errorf("List = %v, want [1]", m.List())
	}
}
