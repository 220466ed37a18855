package http

import (
	"crypto/subtle"
	"net/http"

	"payouts/internal/ledger"
	"payouts/internal/log"
)

type widgetData struct {
	PollIntervalMs int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "widget.html", widgetData{PollIntervalMs: s.poll.Milliseconds()}); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to render widget", log.FieldError, err)
	}
}

// handlePayouts serves the snapshot and consumes the one-shot milestone flag.
// A failed write does not hide the snapshot from the widget; it is logged and
// retried by the next write.
func (s *Server) handlePayouts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		logger := log.FromContext(ctx)
		if !ledger.IsPersistError(err) {
			logger.ErrorContext(ctx, "Snapshot failed", log.FieldError, err)
			ErrorResponse(http.StatusInternalServerError, "Internal server error").Write(w)
			return
		}
		logger.WarnContext(ctx, "Snapshot served but not persisted",
			log.FieldError, err,
			log.FieldOperation, log.OpSnapshot)
	}

	NewJSONResponse().
		Header("Cache-Control", "no-store").
		Body(snap).
		Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReady reports 503 while the in-memory ledger is ahead of storage.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ledger.Dirty() {
		ErrorResponse(http.StatusServiceUnavailable, "ledger state not persisted").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if s.resetKey == "" {
		logger.ErrorContext(ctx, "Reset requested but RESET_KEY is not configured",
			"error_type", log.ErrorTypeConfiguration)
		ErrorResponse(http.StatusInternalServerError, "Reset is not configured").Write(w)
		return
	}

	key := r.URL.Query().Get("key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.resetKey)) != 1 {
		logger.WarnContext(ctx, "Reset rejected", "error_type", log.ErrorTypeAuth)
		ErrorResponse(http.StatusForbidden, "Forbidden").Write(w)
		return
	}

	if err := s.ledger.Reset(ctx); err != nil {
		logger.ErrorContext(ctx, "Reset not persisted", log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "Internal server error").Write(w)
		return
	}

	logger.InfoContext(ctx, "Ledger reset via HTTP", log.FieldOperation, log.OpReset)
	NewJSONResponse().Body(map[string]bool{"success": true}).Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Reset rate limit exceeded",
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests").Write(w)
}
