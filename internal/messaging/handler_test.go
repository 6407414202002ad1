package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReplier struct {
	reply string
	err   error
	calls []string
}

func (s *stubReplier) Reply(ctx context.Context, phone, body string) (string, error) {
	s.calls = append(s.calls, phone+"|"+body)
	return s.reply, s.err
}

func webhookRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func inboundForm(body string) url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC123")
	form.Set("From", "whatsapp:+34600111222")
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", body)
	return form
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	replier := &stubReplier{reply: "¡Hola! Soy LucIA, ¿en qué puedo ayudarte?"}
	transcripts := NewMemoryTranscriptStore()
	handler := NewWebhookHandler(replier, transcripts, "", nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(t, inboundForm("Hola")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), "<Response><Message>")
	assert.Contains(t, rec.Body.String(), "LucIA")

	// The replier saw the bare number, not the whatsapp: address.
	require.Len(t, replier.calls, 1)
	assert.Equal(t, "+34600111222|Hola", replier.calls[0])

	// Both sides of the exchange landed on the transcript.
	history, err := transcripts.History(context.Background(), "+34600111222", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SenderClient, history[0].Sender)
	assert.Equal(t, SenderAssistant, history[1].Sender)
}

func TestWebhookEscapesTwiMLBody(t *testing.T) {
	replier := &stubReplier{reply: `Cita "Corte & Peinado" <confirmada>`}
	handler := NewWebhookHandler(replier, NewMemoryTranscriptStore(), "", nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(t, inboundForm("ok")))

	body := rec.Body.String()
	assert.Contains(t, body, "&amp;")
	assert.Contains(t, body, "&lt;confirmada&gt;")
	assert.NotContains(t, body, "<confirmada>")
}

func TestWebhookAnswersApologyOnReplierError(t *testing.T) {
	replier := &stubReplier{err: errors.New("openai: timeout")}
	handler := NewWebhookHandler(replier, NewMemoryTranscriptStore(), "", nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(t, inboundForm("Hola")))

	// Twilio treats non-200 as a delivery failure and retries; the error
	// surface is the message text instead.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "error técnico")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler := NewWebhookHandler(&stubReplier{reply: "hola"}, NewMemoryTranscriptStore(), "token-secret", nil, nil)

	req := webhookRequest(t, inboundForm("Hola"))
	req.Header.Set("X-Twilio-Signature", "not-a-real-signature")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	replier := &stubReplier{reply: "hola"}
	handler := NewWebhookHandler(replier, NewMemoryTranscriptStore(), "token-secret", nil, nil)

	form := inboundForm("Hola")
	req := webhookRequest(t, form)
	req.Host = "salon.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	signed := computeSignature(buildSignaturePayload("https://salon.example.com/webhooks/twilio/whatsapp", form), "token-secret")
	req.Header.Set("X-Twilio-Signature", signed)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, replier.calls, 1)
}

func TestWebhookRejectsMissingFrom(t *testing.T) {
	handler := NewWebhookHandler(&stubReplier{reply: "hola"}, NewMemoryTranscriptStore(), "", nil, nil)

	form := url.Values{}
	form.Set("Body", "Hola")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(t, form))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
