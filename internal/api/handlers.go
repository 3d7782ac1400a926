package api

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qurain/qurainbot/internal/flow"
	"github.com/qurain/qurainbot/internal/models"
	"github.com/qurain/qurainbot/internal/util"
)

// webhookResponse is the body returned for accepted webhook calls. Status
// carries the coarse tag the gateway cares about; Outcome carries the
// engine's detailed decision.
type webhookResponse struct {
	Status  models.ProcessingStatus `json:"status"`
	Outcome flow.Outcome            `json:"outcome,omitempty"`
}

// statusResponse is the body of GET /.
type statusResponse struct {
	Status      string  `json:"status"`
	Service     string  `json:"service"`
	Timestamp   float64 `json:"timestamp"`
	ActiveUsers int     `json:"active_users"`
}

// statsResponse is the body of GET /stats.
type statsResponse struct {
	ActiveUsers int     `json:"active_users"`
	Timestamp   float64 `json:"timestamp"`
	Status      string  `json:"status"`
}

// serviceName identifies this service in the status payload.
const serviceName = "Qurain WhatsApp Bot"

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		slog.Debug("Server.indexHandler: unmatched route", "method", r.Method, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Endpoint not found"))
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, statusResponse{
		Status:      "active",
		Service:     serviceName,
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		ActiveUsers: s.store.ActiveCount(),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, statsResponse{
		ActiveUsers: s.store.ActiveCount(),
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		Status:      "active",
	})
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	requestID := uuid.NewString()
	slog.Debug("Server.webhookHandler: processing webhook", "requestID", requestID, "method", r.Method)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "requestID", requestID, "method", r.Method)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.webhookHandler: failed to read body", "requestID", requestID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}
	payload, err := models.ParseWebhookPayload(body)
	if err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "requestID", requestID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if payload.IsTest() {
		slog.Info("Server.webhookHandler: webhook test received", "requestID", requestID)
		writeJSONResponse(w, http.StatusOK, webhookResponse{Status: models.StatusTestOK})
		return
	}

	incoming, err := payload.Incoming()
	if err != nil {
		slog.Warn("Server.webhookHandler: invalid payload", "requestID", requestID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	// Echo suppression: the gateway also reports messages we sent ourselves.
	if incoming.FromSelf {
		slog.Debug("Server.webhookHandler: ignoring self-sent message", "requestID", requestID, "userID", incoming.UserID)
		writeJSONResponse(w, http.StatusOK, webhookResponse{Status: models.StatusIgnored})
		return
	}

	text := util.NormalizeDigits(strings.TrimSpace(incoming.Text))
	if text == "" {
		slog.Warn("Server.webhookHandler: empty message body", "requestID", requestID, "userID", incoming.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrMissingMessageText.Error()))
		return
	}

	slog.Info("Server.webhookHandler: message received", "requestID", requestID, "userID", incoming.UserID, "length", len(text))
	outcome := s.engine.Process(r.Context(), incoming.UserID, text)
	slog.Info("Server.webhookHandler: message handled", "requestID", requestID, "userID", incoming.UserID, "outcome", outcome)

	writeJSONResponse(w, http.StatusOK, webhookResponse{Status: statusFor(outcome), Outcome: outcome})
}

func (s *Server) clearStatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	cleared := s.store.Clear()
	slog.Info("Server.clearStatesHandler: cleared conversation states", "count", cleared)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"cleared": cleared}))
}

// statusFor collapses engine outcomes into the coarse webhook status tags.
func statusFor(outcome flow.Outcome) models.ProcessingStatus {
	switch outcome {
	case flow.OutcomeIgnored, flow.OutcomeIgnoredMenu, flow.OutcomeDropped, flow.OutcomeExited:
		return models.StatusIgnored
	default:
		// Started, advanced, completed, help sent, and send failures all mean
		// the webhook call itself was handled; downstream delivery is
		// best-effort.
		return models.StatusProcessed
	}
}

// recoverPanics converts panics escaping a handler into a generic 500 error
// body, keeping the detail server-side.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Server: panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path, "stack", string(debug.Stack()))
				writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
