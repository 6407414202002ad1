package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
)

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) Send(ctx context.Context, to, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to+": "+body)
	return nil
}

func newConversationsRig(sender *recordingSender) (*chi.Mux, *messaging.MemoryTranscriptStore) {
	transcripts := messaging.NewMemoryTranscriptStore()
	handler := NewConversationsHandler(transcripts, sender, nil, nil)

	r := chi.NewRouter()
	r.Get("/admin/conversations", handler.List)
	r.Get("/admin/conversations/{phone}", handler.Transcript)
	r.Post("/admin/messages/send", handler.Send)
	return r, transcripts
}

func TestSendManualMessage(t *testing.T) {
	sender := &recordingSender{}
	router, transcripts := newConversationsRig(sender)

	body, _ := json.Marshal(map[string]string{
		"to":   "whatsapp:+34600111222",
		"body": "Hola, confirmamos tu cita de mañana.",
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/messages/send", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, sender.sent, 1)
	// The channel prefix is stripped before the dispatcher adds its own.
	assert.Contains(t, sender.sent[0], "+34600111222:")

	history, err := transcripts.History(context.Background(), "+34600111222", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, messaging.SenderAssistant, history[0].Sender)
}

func TestSendValidatesInput(t *testing.T) {
	router, _ := newConversationsRig(&recordingSender{})

	body, _ := json.Marshal(map[string]string{"to": "", "body": "hola"})
	req := httptest.NewRequest(http.MethodPost, "/admin/messages/send", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendReportsDispatchFailure(t *testing.T) {
	router, transcripts := newConversationsRig(&recordingSender{err: errors.New("twilio down")})

	body, _ := json.Marshal(map[string]string{"to": "+34600111222", "body": "hola"})
	req := httptest.NewRequest(http.MethodPost, "/admin/messages/send", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Nothing recorded for the failed send.
	history, _ := transcripts.History(context.Background(), "+34600111222", 10)
	assert.Empty(t, history)
}

func TestTranscriptAndConversationList(t *testing.T) {
	router, transcripts := newConversationsRig(&recordingSender{})
	ctx := context.Background()

	require.NoError(t, transcripts.Append(ctx, &messaging.Message{
		PhoneNumber: "+34600111222", Body: "Hola", Sender: messaging.SenderClient,
	}))
	require.NoError(t, transcripts.Append(ctx, &messaging.Message{
		PhoneNumber: "+34600111222", Body: "¡Hola!", Sender: messaging.SenderAssistant,
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/+34600111222", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var transcript struct {
		Messages []messaging.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	assert.Len(t, transcript.Messages, 2)

	req = httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Conversations []messaging.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, 2, list.Conversations[0].Messages)
}

func TestSettingsRoundTripAndValidation(t *testing.T) {
	provider := salon.NewMemoryStore()
	handler := NewSettingsHandler(provider, nil, nil)

	r := chi.NewRouter()
	r.Get("/admin/settings", handler.Get)
	r.Put("/admin/settings", handler.Put)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings salon.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "Peluquería Reyna", settings.SalonName)

	settings.ClosedStart = "13:00"
	body, _ := json.Marshal(settings)
	req = httptest.NewRequest(http.MethodPut, "/admin/settings", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := provider.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "13:00", saved.ClosedStart)

	// Bad timezone is rejected.
	settings.Timezone = "Mars/Olympus"
	body, _ = json.Marshal(settings)
	req = httptest.NewRequest(http.MethodPut, "/admin/settings", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSettingsPutRefreshesBookingRules(t *testing.T) {
	provider := salon.NewMemoryStore()
	defaults := salon.DefaultSettings()
	closed, err := defaults.ClosedWindow()
	require.NoError(t, err)
	booker := scheduling.NewBooker(scheduling.NewMemoryStore(), defaults.Catalog(), closed, nil)
	handler := NewSettingsHandler(provider, booker, nil)

	r := chi.NewRouter()
	r.Put("/admin/settings", handler.Put)

	edited := salon.DefaultSettings()
	edited.ClosedStart = "10:00"
	edited.ClosedEnd = "12:00"
	body, _ := json.Marshal(edited)
	req := httptest.NewRequest(http.MethodPut, "/admin/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// A slot inside the newly closed window is rejected without a restart.
	_, err = booker.Create(context.Background(), scheduling.CreateInput{
		PhoneNumber: "+34600111222",
		ClientName:  "María",
		ServiceType: "Corte/Peinado",
		StartsAt:    time.Date(2025, 12, 23, 10, 30, 0, 0, edited.Location()),
		Source:      scheduling.SourceStaff,
	})
	var che *scheduling.ClosedHoursError
	require.ErrorAs(t, err, &che)
}
