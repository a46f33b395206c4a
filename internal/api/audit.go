package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/railrunner/internal/audit"
)

// record appends a change made through the API to the audit trail.
func (s *Server) record(r *http.Request, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	entry.Actor = subjectOf(r)
	entry.Source = audit.SourceAPI
	if err := s.audit.Record(r.Context(), &entry); err != nil {
		s.logger.Warn("audit record failed", "action", entry.Action, "subject", entry.Subject, "error", err)
	}
}

// handleListAudit returns a page of the audit trail, newest first.
//
// Query parameters: action, subject, subject_id, actor, since (RFC 3339),
// limit and offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail requires the sqlite storage backend")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:    q.Get("action"),
		Subject:   q.Get("subject"),
		SubjectID: q.Get("subject_id"),
		Actor:     q.Get("actor"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, p.name+" must be an integer")
			return
		}
		*p.dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
