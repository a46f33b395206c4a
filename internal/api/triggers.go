package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// triggerRequest is the body of POST /triggers and PATCH /triggers/{id}.
// Speed and track selection are names such as "Fwd_Hi" and "Left".
type triggerRequest struct {
	Position         *rail.Vector3 `json:"position,omitempty"`
	StartsAutomation bool          `json:"starts_automation"`
	Speed            string        `json:"speed,omitempty"`
	TrackSelection   string        `json:"track_selection,omitempty"`
}

// options parses the named speed and branch.
func (req triggerRequest) options() (trigger.Options, error) {
	opts := trigger.Options{StartsAutomation: req.StartsAutomation}
	if req.Speed != "" {
		speed, err := rail.ParseEngineSpeed(req.Speed)
		if err != nil {
			return trigger.Options{}, err
		}
		opts.Speed = &speed
	}
	if req.TrackSelection != "" {
		track, err := rail.ParseTrackSelection(req.TrackSelection)
		if err != nil {
			return trigger.Options{}, err
		}
		opts.TrackSelection = &track
	}
	return opts, nil
}

// showRequest is the body of POST /triggers/show.
type showRequest struct {
	Observer string `json:"observer"`
}

// triggerResponse is a trigger with its drawing hints.
type triggerResponse struct {
	trigger.Record
	Label  string `json:"label"`
	Colour string `json:"colour"`
}

func newTriggerResponse(t *trigger.Trigger) triggerResponse {
	return triggerResponse{Record: t.Record(), Label: t.Label(), Colour: t.Colour()}
}

// handleListTriggers returns every trigger of the loaded map in stored order.
func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	var list []*trigger.Trigger
	var mapID string
	if err := s.call(r.Context(), func() error {
		list = s.engine.Triggers()
		mapID = s.engine.MapID()
		return nil
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]triggerResponse, 0, len(list))
	for _, t := range list {
		out = append(out, newTriggerResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"map_id": mapID, "triggers": out, "count": len(out)})
}

// handleGetTrigger returns one trigger.
func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTriggerID(w, r)
	if !ok {
		return
	}

	var t *trigger.Trigger
	var found bool
	if err := s.call(r.Context(), func() error {
		t, found = s.engine.Trigger(id)
		return nil
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !found {
		writeNotFound(w, fmt.Sprintf("trigger %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, newTriggerResponse(t))
}

// handleCreateTrigger places a trigger at the given position.
func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "position is required")
		return
	}
	opts, err := req.options()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var added *trigger.Trigger
	var mapID string
	if err := s.call(r.Context(), func() error {
		var addErr error
		added, addErr = s.engine.AddTrigger(r.Context(), *req.Position, opts)
		mapID = s.engine.MapID()
		return addErr
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("trigger added", "id", added.ID, "by", subjectOf(r))
	s.recordTrigger(r, "add", mapID, added)
	writeJSON(w, http.StatusCreated, newTriggerResponse(added))
}

// handleUpdateTrigger replaces every option of a trigger. Omitted fields
// are cleared. The position is changed through PUT /triggers/{id}/position.
func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTriggerID(w, r)
	if !ok {
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Position != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "position is changed with PUT /triggers/{id}/position")
		return
	}
	opts, err := req.options()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var updated *trigger.Trigger
	var mapID string
	if err := s.call(r.Context(), func() error {
		var updateErr error
		updated, updateErr = s.engine.UpdateTrigger(r.Context(), id, opts)
		mapID = s.engine.MapID()
		return updateErr
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("trigger updated", "id", id, "by", subjectOf(r))
	s.recordTrigger(r, "update", mapID, updated)
	writeJSON(w, http.StatusOK, newTriggerResponse(updated))
}

// handleMoveTrigger moves a trigger and its zone.
func (s *Server) handleMoveTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTriggerID(w, r)
	if !ok {
		return
	}

	var position rail.Vector3
	if err := json.NewDecoder(r.Body).Decode(&position); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var moved *trigger.Trigger
	var mapID string
	if err := s.call(r.Context(), func() error {
		var moveErr error
		moved, moveErr = s.engine.MoveTrigger(r.Context(), id, position)
		mapID = s.engine.MapID()
		return moveErr
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("trigger moved", "id", id, "by", subjectOf(r))
	s.recordTrigger(r, "move", mapID, moved)
	writeJSON(w, http.StatusOK, newTriggerResponse(moved))
}

// handleDeleteTrigger removes a trigger and its zone.
func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTriggerID(w, r)
	if !ok {
		return
	}

	var mapID string
	if err := s.call(r.Context(), func() error {
		mapID = s.engine.MapID()
		return s.engine.RemoveTrigger(r.Context(), id)
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("trigger removed", "id", id, "by", subjectOf(r))
	s.record(r, audit.Entry{Action: "remove", Subject: audit.SubjectTrigger, SubjectID: strconv.Itoa(id), MapID: mapID})
	w.WriteHeader(http.StatusNoContent)
}

// handleShowTriggers draws every trigger and platform to an observer.
func (s *Server) handleShowTriggers(w http.ResponseWriter, r *http.Request) {
	var req showRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Observer == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "observer is required")
		return
	}

	var count int
	if err := s.call(r.Context(), func() error {
		count = s.engine.Show(req.Observer)
		return nil
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"observer": req.Observer, "count": count})
}

func (s *Server) recordTrigger(r *http.Request, action, mapID string, t *trigger.Trigger) {
	s.record(r, audit.Entry{
		Action:    action,
		Subject:   audit.SubjectTrigger,
		SubjectID: strconv.Itoa(t.ID),
		MapID:     mapID,
		Details:   map[string]any{"label": t.Label(), "position": t.Position.String()},
	})
}

// parseTriggerID reads the {id} path parameter, writing a 400 on failure.
func parseTriggerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("invalid trigger id %q", raw))
		return 0, false
	}
	return id, true
}

// subjectOf returns the token subject of the caller, for logging.
func subjectOf(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
