package messaging

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

var handlerTracer = otel.Tracer("reyna.internal.messaging.handler")

// Replier produces the assistant's answer to one inbound client message.
type Replier interface {
	Reply(ctx context.Context, phone, body string) (string, error)
}

const fallbackReply = "Lo siento, ha ocurrido un error técnico. Por favor, inténtalo de nuevo en unos minutos."

// WebhookHandler receives Twilio WhatsApp webhooks, runs the assistant and
// answers with TwiML. Twilio renders the TwiML body as the reply message, so
// even failures answer 200 with an apology text rather than an error status.
type WebhookHandler struct {
	replier     Replier
	transcripts TranscriptStore
	authToken   string
	logger      *logging.Logger
	metrics     *metrics.MessagingMetrics
}

func NewWebhookHandler(replier Replier, transcripts TranscriptStore, authToken string, logger *logging.Logger, m *metrics.MessagingMetrics) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		replier:     replier,
		transcripts: transcripts,
		authToken:   authToken,
		logger:      logger,
		metrics:     m,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := handlerTracer.Start(r.Context(), "messaging.webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
	}()

	// An empty auth token disables verification (DB-less dev mode).
	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, RequestURL(r)) {
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		h.metrics.ObserveInbound("rejected")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	msg, err := ParseWebhook(r)
	if err != nil {
		h.logger.Error("webhook parse failed", "error", err)
		h.metrics.ObserveInbound("malformed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("reyna.from", msg.From))

	if err := h.transcripts.Append(ctx, &Message{
		PhoneNumber: msg.From,
		Body:        msg.Body,
		Sender:      SenderClient,
	}); err != nil {
		h.logger.Error("store inbound message failed", "error", err)
	}

	reply, err := h.replier.Reply(ctx, msg.From, msg.Body)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("assistant reply failed", "from", msg.From, "error", err)
		h.metrics.ObserveInbound("error")
		writeTwiML(w, fallbackReply)
		return
	}

	if err := h.transcripts.Append(ctx, &Message{
		PhoneNumber: msg.From,
		Body:        reply,
		Sender:      SenderAssistant,
	}); err != nil {
		h.logger.Error("store outbound message failed", "error", err)
	}

	h.metrics.ObserveInbound("ok")
	h.logger.Info("webhook answered", "from", msg.From, "latency_ms", time.Since(start).Milliseconds())
	writeTwiML(w, reply)
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, body string) {
	out, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		// Marshal of a plain string cannot realistically fail; answer empty
		// TwiML so Twilio stays quiet instead of retrying.
		out = []byte("<Response></Response>")
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}
