package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/audio"
)

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "artifact_not_found", "audio store not configured")
		return
	}
	ref := chi.URLParam(r, "ref")
	a, err := s.store.Get(r.Context(), ref)
	switch {
	case errors.Is(err, audio.ErrInvalidRef):
		respondError(w, http.StatusBadRequest, "invalid_ref", err.Error())
		return
	case errors.Is(err, audio.ErrArtifactNotFound):
		respondError(w, http.StatusNotFound, "artifact_not_found", err.Error())
		return
	case err != nil:
		s.logger.Error("audio fetch failed", zap.String("ref", ref), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "store_error", "audio unavailable")
		return
	}
	mime := a.MIMEType
	if mime == "" {
		mime = audio.MIMETypeForRef(ref)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	// References are never reused, so the payload can be cached.
	w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
