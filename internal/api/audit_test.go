package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/auth"
	"github.com/nerrad567/railrunner/internal/infrastructure/database"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/migrations"
)

func newAuditRepo(t *testing.T) *audit.SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return audit.NewSQLiteRepository(db.DB)
}

func TestAudit_RecordsAPIChanges(t *testing.T) {
	s := newTestServer(t, newFakeEngine(), immediateLoop{})
	s.audit = newAuditRepo(t)
	h := s.buildRouter()
	op := tokenFor(t, auth.RoleOperator)

	if rec := doRequest(t, h, http.MethodPost, "/api/v1/triggers", op,
		triggerRequest{Position: &rail.Vector3{X: 1}, Speed: "Zero"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/v1/vehicles/7/automation", op, nil); rec.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", rec.Code, rec.Body)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/triggers/1", op, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body)
	}
	// Failed changes are not recorded.
	doRequest(t, h, http.MethodDelete, "/api/v1/triggers/1", op, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/audit", tokenFor(t, auth.RoleAdmin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body)
	}
	got := decode[audit.ListResult](t, rec)
	if got.Total != 3 {
		t.Fatalf("total = %d, entries %+v", got.Total, got.Entries)
	}
	for _, e := range got.Entries {
		if e.Actor != "tester" || e.Source != audit.SourceAPI || e.MapID != "valley" {
			t.Errorf("entry attribution = %+v", e)
		}
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/audit?subject=vehicle", tokenFor(t, auth.RoleAdmin), nil)
	vehicles := decode[audit.ListResult](t, rec)
	if vehicles.Total != 1 || vehicles.Entries[0].SubjectID != "7" || vehicles.Entries[0].Details["automated"] != true {
		t.Errorf("vehicle entries = %+v", vehicles.Entries)
	}
}

func TestAudit_ListErrors(t *testing.T) {
	withRepo := newTestServer(t, newFakeEngine(), immediateLoop{})
	withRepo.audit = newAuditRepo(t)
	without := newTestServer(t, newFakeEngine(), immediateLoop{})

	tests := []struct {
		name   string
		server *Server
		role   auth.Role
		query  string
		want   int
	}{
		{"operator forbidden", withRepo, auth.RoleOperator, "", http.StatusForbidden},
		{"bad since", withRepo, auth.RoleAdmin, "?since=yesterday", http.StatusBadRequest},
		{"bad limit", withRepo, auth.RoleAdmin, "?limit=lots", http.StatusBadRequest},
		{"paged", withRepo, auth.RoleAdmin, "?limit=5&offset=0&since=2026-01-01T00:00:00Z", http.StatusOK},
		{"file backend", without, auth.RoleAdmin, "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, tt.server.buildRouter(), http.MethodGet, "/api/v1/audit"+tt.query, tokenFor(t, tt.role), nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
