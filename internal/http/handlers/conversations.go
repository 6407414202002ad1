package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

type dispatcher interface {
	Send(ctx context.Context, to, body string) error
}

// ConversationsHandler lets staff read WhatsApp transcripts and send manual
// messages outside the assistant flow.
type ConversationsHandler struct {
	transcripts messaging.TranscriptStore
	sender      dispatcher
	logger      *logging.Logger
	metrics     *metrics.MessagingMetrics
}

func NewConversationsHandler(transcripts messaging.TranscriptStore, sender dispatcher, logger *logging.Logger, m *metrics.MessagingMetrics) *ConversationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationsHandler{transcripts: transcripts, sender: sender, logger: logger, metrics: m}
}

// List returns one summary row per client conversation.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = n
	}
	convos, err := h.transcripts.ListConversations(r.Context(), limit)
	if err != nil {
		h.logger.Error("list conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convos})
}

// Transcript returns the recent messages for one phone number.
func (h *ConversationsHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, errors.New("phone required"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = n
	}
	history, err := h.transcripts.History(r.Context(), phone, limit)
	if err != nil {
		h.logger.Error("load transcript failed", "phone", phone, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone_number": phone, "messages": history})
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers a staff-written WhatsApp message and records it on the
// transcript as an assistant line.
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	req.To = messaging.StripWhatsApp(req.To)
	if req.To == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, errors.New("to and body required"))
		return
	}

	if err := h.sender.Send(r.Context(), req.To, req.Body); err != nil {
		h.metrics.ObserveOutbound("failed")
		h.logger.Error("manual send failed", "to", req.To, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	h.metrics.ObserveOutbound("sent")

	if err := h.transcripts.Append(r.Context(), &messaging.Message{
		PhoneNumber: req.To,
		Body:        req.Body,
		Sender:      messaging.SenderAssistant,
	}); err != nil {
		h.logger.Error("store manual message failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent", "to": req.To})
}
