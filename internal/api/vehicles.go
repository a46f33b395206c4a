package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/station"
)

// handleListVehicles returns every automated vehicle with its phase.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	var vehicles []automation.Status
	if err := s.call(r.Context(), func() error {
		vehicles = s.engine.Vehicles()
		return nil
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles, "count": len(vehicles)})
}

// handleToggleAutomation automates a manual vehicle or releases an
// automated one.
func (s *Server) handleToggleAutomation(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("invalid vehicle id %q", raw))
		return
	}
	vehicle := host.EntityID(id)

	var automated bool
	var mapID string
	if err := s.call(r.Context(), func() error {
		var toggleErr error
		automated, toggleErr = s.engine.ToggleAutomation(r.Context(), vehicle)
		mapID = s.engine.MapID()
		return toggleErr
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("automation toggled", "vehicle", vehicle, "automated", automated, "by", subjectOf(r))
	s.record(r, audit.Entry{
		Action:    "toggle",
		Subject:   audit.SubjectVehicle,
		SubjectID: strconv.FormatUint(id, 10),
		MapID:     mapID,
		Details:   map[string]any{"automated": automated},
	})
	writeJSON(w, http.StatusOK, map[string]any{"vehicle_id": vehicle, "automated": automated})
}

// handleListStations returns the detected station platforms.
func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	var stations []station.Info
	if err := s.call(r.Context(), func() error {
		stations = s.engine.Stations()
		return nil
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations, "count": len(stations)})
}
