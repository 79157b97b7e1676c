package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/policy"
	"github.com/antoniostano/voicecaller/internal/protocol"
	"github.com/antoniostano/voicecaller/internal/session"
)

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.malformed(w, r, err)
		return
	}
	ev, err := protocol.ParseIncomingCall(r.PostForm)
	if err != nil {
		s.malformed(w, r, err)
		return
	}
	s.logger.Info("incoming call",
		zap.String("call_id", ev.CallSID),
		zap.String("from", policy.MaskPhone(ev.From)),
		zap.String("direction", ev.Direction),
	)

	if ref := trimmed(r.URL.Query().Get("instruction_ref")); ref != "" && s.dialer != nil {
		if pending, ok := s.dialer.Take(ref); ok {
			err := s.flow.SetInstruction(r.Context(), ev.CallSID, pending.Instruction, pending.Overrides)
			if err != nil && !errors.Is(err, session.ErrInstructionLocked) {
				s.logger.Warn("apply outbound instruction failed", zap.String("call_id", ev.CallSID), zap.Error(err))
			}
		} else {
			s.logger.Warn("outbound instruction expired", zap.String("call_id", ev.CallSID))
		}
	}

	s.writeTwiML(w, ev.CallSID, s.flow.OnIncoming(r.Context(), ev.CallSID))
}

func (s *Server) handleCallerInput(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.malformed(w, r, err)
		return
	}
	in, err := protocol.ParseCallerInput(r.PostForm)
	if err != nil {
		s.malformed(w, r, err)
		return
	}
	s.writeTwiML(w, in.CallSID, s.flow.OnCallerInput(r.Context(), in.CallSID, in.Text, in.Kind))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	ev, err := protocol.ParseStatusEvent(r.PostForm)
	if err != nil {
		s.metrics.CallEvent("malformed")
		respondError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}
	s.flow.OnStatus(r.Context(), ev.CallSID, ev.Status)
	respondJSON(w, http.StatusOK, map[string]string{"status": "received", "call_status": ev.Status})
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	ev, err := protocol.ParseRecordingEvent(r.PostForm)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}
	s.metrics.CallEvent("recording")
	s.logger.Info("call recording available",
		zap.String("call_id", ev.CallSID),
		zap.String("recording_sid", ev.RecordingSID),
		zap.String("recording_url", ev.RecordingURL),
		zap.Int("duration_s", ev.Duration),
	)
	respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// malformed answers an unparseable voice webhook with a hangup.
func (s *Server) malformed(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.CallEvent("malformed")
	s.logger.Warn("malformed webhook", zap.String("path", r.URL.Path), zap.Error(err))
	s.writeTwiML(w, "", protocol.DeclineAndHangup(s.cfg.DeclineMessage))
}
