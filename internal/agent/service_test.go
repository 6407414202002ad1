package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
)

type scriptedClient struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (c *scriptedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return openai.ChatCompletionResponse{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return textResponse("ok"), nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCallResponse(name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{
						ID:       "call_1",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: name, Arguments: arguments},
					},
				},
			}},
		},
	}
}

func newTestAssistant(t *testing.T, client chatClient) (*Assistant, *scheduling.MemoryStore, *messaging.MemoryTranscriptStore) {
	t.Helper()
	store := scheduling.NewMemoryStore()
	settings := salon.DefaultSettings()
	closed, err := settings.ClosedWindow()
	require.NoError(t, err)
	booker := scheduling.NewBooker(store, settings.Catalog(), closed, nil)
	transcripts := messaging.NewMemoryTranscriptStore()

	assistant := NewAssistant(client, booker, transcripts, salon.NewMemoryStore(), "gpt-4o-mini", nil, nil)
	assistant.now = func() time.Time {
		return time.Date(2025, 12, 22, 9, 0, 0, 0, settings.Location())
	}
	return assistant, store, transcripts
}

func TestReplyWithoutToolCall(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse("¡Hola! ¿Qué día te viene bien?"),
	}}
	assistant, _, _ := newTestAssistant(t, client)

	reply, err := assistant.Reply(context.Background(), "+34600111222", "Quiero cita")
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Qué día te viene bien?", reply)

	// Exactly one completion, with the tools advertised.
	require.Len(t, client.requests, 1)
	assert.Len(t, client.requests[0].Tools, 3)
	assert.Equal(t, "gpt-4o-mini", client.requests[0].Model)
}

func TestReplyFallsBackOnEmptyContent(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{textResponse("  ")}}
	assistant, _, _ := newTestAssistant(t, client)

	reply, err := assistant.Reply(context.Background(), "+34600111222", "ok")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, reply)
}

func TestReplyCreatesAppointmentViaTool(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		toolCallResponse(toolCreateAppointment,
			`{"client_name":"María García","service_type":"Keratina (Alisado)","appointment_date":"2025-12-23T10:00:00+01:00"}`),
		textResponse("¡Listo María! Tu keratina queda apuntada para el martes a las 10:00."),
	}}
	assistant, store, _ := newTestAssistant(t, client)

	reply, err := assistant.Reply(context.Background(), "+34600111222", "Quiero una keratina el martes a las 10")
	require.NoError(t, err)
	assert.Contains(t, reply, "keratina")

	appts, err := store.ListUpcomingByPhone(context.Background(), "+34600111222", time.Time{})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, scheduling.StatusPending, appts[0].Status)
	assert.Equal(t, "María García", appts[0].ClientName)

	// The second completion carried the tool outcome and no tools.
	require.Len(t, client.requests, 2)
	second := client.requests[1]
	assert.Empty(t, second.Tools)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Contains(t, last.Content, "Éxito al crear")
}

func TestReplyCreateToolCarriesNotes(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		toolCallResponse(toolCreateAppointment,
			`{"client_name":"María","service_type":"Tintes/Baños de Color","appointment_date":"2025-12-23T10:00:00+01:00","notes":"alergia al amoníaco"}`),
		textResponse("Apuntado, María. Avisamos al equipo de la alergia."),
	}}
	assistant, store, _ := newTestAssistant(t, client)

	_, err := assistant.Reply(context.Background(), "+34600111222", "Tinte el martes, soy alérgica al amoníaco")
	require.NoError(t, err)

	appts, err := store.ListUpcomingByPhone(context.Background(), "+34600111222", time.Time{})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "alergia al amoníaco", appts[0].Notes)
}

func TestReplyReportsClosedHoursAsToolOutcome(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		toolCallResponse(toolCreateAppointment,
			`{"client_name":"María","service_type":"Corte/Peinado","appointment_date":"2025-12-23T14:30:00+01:00"}`),
		textResponse("Lo siento, a esa hora estamos cerrados por comida. ¿Te va bien a las 16:00?"),
	}}
	assistant, store, _ := newTestAssistant(t, client)

	reply, err := assistant.Reply(context.Background(), "+34600111222", "Cita a las 14:30")
	require.NoError(t, err)
	assert.Contains(t, reply, "16:00")

	// Nothing was written.
	appts, _ := store.ListUpcomingByPhone(context.Background(), "+34600111222", time.Time{})
	assert.Empty(t, appts)

	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Contains(t, last.Content, "Error:")
	assert.Contains(t, last.Content, "14:00")
}

func TestReplyCancelScopedToClient(t *testing.T) {
	assistantSetupClient := &scriptedClient{}
	assistant, store, _ := newTestAssistant(t, assistantSetupClient)

	// Someone else's appointment.
	other := &scheduling.Appointment{
		PhoneNumber: "+34600999888",
		ClientName:  "Lucía",
		ServiceType: "Corte/Peinado",
		StartsAt:    time.Date(2025, 12, 23, 10, 0, 0, 0, time.UTC),
		Status:      scheduling.StatusPending,
	}
	require.NoError(t, store.Insert(context.Background(), other))

	assistantSetupClient.responses = []openai.ChatCompletionResponse{
		toolCallResponse(toolCancelAppointment, `{"appointment_id":"`+other.ID.String()+`"}`),
		textResponse("No encuentro esa cita, ¿puedes comprobarlo?"),
	}

	_, err := assistant.Reply(context.Background(), "+34600111222", "Cancela mi cita")
	require.NoError(t, err)

	// The foreign appointment is untouched.
	kept, err := store.Get(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusPending, kept.Status)

	last := assistantSetupClient.requests[1].Messages[len(assistantSetupClient.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "Error:")
}

func TestReplyReturnsRawOutcomeWhenPhrasingFails(t *testing.T) {
	client := &scriptedClient{
		responses: []openai.ChatCompletionResponse{
			toolCallResponse(toolCreateAppointment,
				`{"client_name":"María","service_type":"Corte/Peinado","appointment_date":"2025-12-23T10:00:00+01:00"}`),
		},
		errs: []error{nil, errors.New("openai: 500")},
	}
	assistant, store, _ := newTestAssistant(t, client)

	reply, err := assistant.Reply(context.Background(), "+34600111222", "Cita mañana a las 10")
	require.NoError(t, err)
	assert.Contains(t, reply, "Éxito al crear")

	appts, _ := store.ListUpcomingByPhone(context.Background(), "+34600111222", time.Time{})
	assert.Len(t, appts, 1)
}

func TestReplyIncludesTranscriptAndUpcoming(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{textResponse("claro")}}
	assistant, store, transcripts := newTestAssistant(t, client)
	ctx := context.Background()

	existing := &scheduling.Appointment{
		PhoneNumber: "+34600111222",
		ClientName:  "María",
		ServiceType: "Botox Capilar",
		StartsAt:    time.Date(2025, 12, 29, 10, 0, 0, 0, time.UTC),
		Status:      scheduling.StatusConfirmed,
	}
	require.NoError(t, store.Insert(ctx, existing))

	require.NoError(t, transcripts.Append(ctx, &messaging.Message{
		PhoneNumber: "+34600111222", Body: "Hola", Sender: messaging.SenderClient,
		ReceivedAt: time.Date(2025, 12, 22, 8, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, transcripts.Append(ctx, &messaging.Message{
		PhoneNumber: "+34600111222", Body: "¡Hola! Soy LucIA.", Sender: messaging.SenderAssistant,
		ReceivedAt: time.Date(2025, 12, 22, 8, 1, 0, 0, time.UTC),
	}))

	_, err := assistant.Reply(ctx, "+34600111222", "¿Cuándo es mi cita?")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages

	// System prompt carries the persona and the client's appointment id.
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "LucIA")
	assert.Contains(t, msgs[0].Content, existing.ID.String())

	// Transcript mapped in order, current message appended once at the end.
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	assert.Equal(t, "Hola", msgs[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[3].Role)
	assert.Equal(t, "¿Cuándo es mi cita?", msgs[3].Content)
}

func TestParseWhen(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	ts, err := parseWhen("2025-12-23T10:00:00+01:00", loc)
	require.NoError(t, err)
	assert.Equal(t, 10, ts.In(loc).Hour())

	ts, err = parseWhen("2025-12-23T10:00:00", loc)
	require.NoError(t, err)
	assert.Equal(t, loc.String(), ts.Location().String())

	_, err = parseWhen("mañana a las diez", loc)
	assert.Error(t, err)

	_, err = parseWhen("", loc)
	assert.Error(t, err)
}
