package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/dialer"
	"github.com/antoniostano/voicecaller/internal/session"
)

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	if s.dialer == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "outbound calls require Twilio credentials")
		return
	}
	var req dialer.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	placed, err := s.dialer.Dial(r.Context(), req)
	switch {
	case errors.Is(err, dialer.ErrInvalidNumber), errors.Is(err, dialer.ErrMissingInstruction):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		s.logger.Warn("outbound call failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "dial_failed", err.Error())
		return
	}
	s.metrics.CallEvent("outbound_placed")
	respondJSON(w, http.StatusCreated, placed)
}

type instructionRequest struct {
	Instruction string            `json:"instruction"`
	Overrides   session.Overrides `json:"overrides"`
}

func (s *Server) handleSetInstruction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req instructionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if trimmed(req.Instruction) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "instruction is required")
		return
	}
	err := s.flow.SetInstruction(r.Context(), id, req.Instruction, req.Overrides)
	switch {
	case errors.Is(err, session.ErrInvalidCallID):
		respondError(w, http.StatusBadRequest, "invalid_call_id", err.Error())
		return
	case errors.Is(err, session.ErrInstructionLocked):
		respondError(w, http.StatusConflict, "instruction_locked", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, "call_busy", err.Error())
		return
	}
	snap, err := s.flow.Snapshot(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "call_busy", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.flow.Snapshot(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrInvalidCallID):
		respondError(w, http.StatusBadRequest, "invalid_call_id", err.Error())
		return
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, "call_busy", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
