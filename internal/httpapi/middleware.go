package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/protocol"
	"github.com/antoniostano/voicecaller/internal/twilio"
)

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// recoverWebhook answers a panicking webhook with a hangup so the caller
// never hears a platform error.
func (s *Server) recoverWebhook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			callID := trimmed(r.PostFormValue("CallSid"))
			cause := fmt.Errorf("webhook panic: %v", rec)
			a := protocol.DeclineAndHangup(s.cfg.DeclineMessage)
			if callID != "" && s.flow != nil {
				a = s.flow.OnUnrecoverableFault(r.Context(), callID, cause)
			} else {
				s.logger.Error("webhook panic", zap.String("path", r.URL.Path), zap.Error(cause))
			}
			s.writeTwiML(w, callID, a)
		}()
		next.ServeHTTP(w, r)
	})
}

// verifyTwilioSignature rejects webhooks whose X-Twilio-Signature does not
// match the configured auth token.
func (s *Server) verifyTwilioSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.TwilioValidateSignature {
			next.ServeHTTP(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
			return
		}
		err := twilio.VerifySignature(s.cfg.TwilioAuthToken, r.Header.Get("X-Twilio-Signature"), s.webhookURL(r), r.PostForm)
		if err != nil {
			s.metrics.CallEvent("signature_rejected")
			s.logger.Warn("webhook signature rejected", zap.String("path", r.URL.Path), zap.Error(err))
			code := "invalid_signature"
			if errors.Is(err, twilio.ErrMissingSignature) {
				code = "missing_signature"
			}
			respondError(w, http.StatusForbidden, code, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIToken guards the call control API with a static bearer token.
// Without a configured token the API stays closed.
func (s *Server) requireAPIToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" {
			respondError(w, http.StatusServiceUnavailable, "api_disabled", "APP_API_TOKEN is not configured")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.APIToken)) != 1 {
			s.logger.Warn("api request rejected", zap.String("path", r.URL.Path), zap.Bool("has_token", ok))
			w.Header().Set("WWW-Authenticate", `Bearer realm="voicecaller"`)
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// webhookDeadline bounds every webhook by the platform response deadline.
func (s *Server) webhookDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.WebhookDeadline <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.WebhookDeadline)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// webhookURL is the URL Twilio signed: the public base plus the request URI.
func (s *Server) webhookURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
