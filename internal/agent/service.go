package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

var agentTracer = otel.Tracer("reyna.internal.agent")

const (
	historyLimit   = 10
	openAITimeout  = 30 * time.Second
	fallbackAnswer = "¡Entendido! ¿Hay algo más en lo que pueda ayudarte?"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// HistoryProvider supplies the recent transcript for a client, oldest first.
type HistoryProvider interface {
	History(ctx context.Context, phone string, limit int) ([]messaging.Message, error)
}

// Assistant is the conversational booking agent. Each Reply call rebuilds the
// model context from the stored transcript, so the assistant itself carries no
// per-conversation state.
type Assistant struct {
	client   chatClient
	booker   *scheduling.Booker
	history  HistoryProvider
	settings salon.Provider
	model    string
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

// NewAssistant wires the agent. model defaults to gpt-4o-mini.
func NewAssistant(client chatClient, booker *scheduling.Booker, history HistoryProvider, settings salon.Provider, model string, logger *logging.Logger, m *metrics.BookingMetrics) *Assistant {
	if client == nil {
		panic("agent: chat client cannot be nil")
	}
	if booker == nil {
		panic("agent: booker cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Assistant{
		client:   client,
		booker:   booker,
		history:  history,
		settings: settings,
		model:    model,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Reply answers one inbound WhatsApp message, running at most one booking
// tool call.
func (a *Assistant) Reply(ctx context.Context, phone, body string) (string, error) {
	ctx, span := agentTracer.Start(ctx, "agent.reply")
	defer span.End()
	span.SetAttributes(attribute.String("reyna.phone", phone))

	settings, err := a.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: load settings: %w", err)
	}
	now := a.now()

	upcoming, err := a.booker.Upcoming(ctx, phone, now)
	if err != nil {
		// The prompt degrades gracefully without the appointment list.
		a.logger.Error("load upcoming appointments failed", "phone", phone, "error", err)
	}

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(settings, now, upcoming)},
	}
	msgs = a.appendHistory(ctx, msgs, phone, body)

	completion, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
		Tools:    bookingTools(),
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if len(completion.ToolCalls) == 0 {
		if reply := strings.TrimSpace(completion.Content); reply != "" {
			return reply, nil
		}
		return fallbackAnswer, nil
	}

	call := completion.ToolCalls[0]
	result := a.dispatch(ctx, phone, settings, call)
	a.logger.Info("booking tool executed", "tool", call.Function.Name, "result", result)

	// Second pass lets the model phrase the outcome; the raw result text is
	// the fallback when that fails.
	msgs = append(msgs, completion, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result,
		ToolCallID: call.ID,
	})
	phrased, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
	})
	if err != nil {
		a.logger.Error("phrasing completion failed", "error", err)
		return result, nil
	}
	if reply := strings.TrimSpace(phrased.Content); reply != "" {
		return reply, nil
	}
	return result, nil
}

func (a *Assistant) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("agent: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("agent: openai returned no choices")
	}
	return resp.Choices[0].Message, nil
}

// appendHistory maps the stored transcript onto chat roles and makes sure the
// context ends with the current inbound message. The webhook stores the
// inbound line before calling Reply, so it usually arrives as the transcript
// tail already.
func (a *Assistant) appendHistory(ctx context.Context, msgs []openai.ChatCompletionMessage, phone, body string) []openai.ChatCompletionMessage {
	if a.history != nil {
		lines, err := a.history.History(ctx, phone, historyLimit)
		if err != nil {
			a.logger.Error("load transcript failed", "phone", phone, "error", err)
		}
		for _, line := range lines {
			role := openai.ChatMessageRoleUser
			if line.Sender == messaging.SenderAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: line.Body})
		}
	}

	last := msgs[len(msgs)-1]
	if last.Role != openai.ChatMessageRoleUser || last.Content != body {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: body})
	}
	return msgs
}

// dispatch executes one tool call and renders its outcome as the Spanish text
// handed back to the model. Booking failures are outcomes, not errors: the
// client hears why the slot did not work.
func (a *Assistant) dispatch(ctx context.Context, phone string, settings *salon.Settings, call openai.ToolCall) string {
	loc := settings.Location()

	switch call.Function.Name {
	case toolCreateAppointment:
		var args createArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "Error: no se pudieron interpretar los datos de la cita."
		}
		startsAt, err := parseWhen(args.AppointmentDate, loc)
		if err != nil {
			return "Error: la fecha de la cita no es válida."
		}
		appt, err := a.booker.Create(ctx, scheduling.CreateInput{
			PhoneNumber: phone,
			ClientName:  args.ClientName,
			ServiceType: args.ServiceType,
			StartsAt:    startsAt,
			Notes:       args.Notes,
			Source:      scheduling.SourceAgent,
		})
		if err != nil {
			a.metrics.ObserveOperation("create", "error")
			return scheduling.UserMessage(err)
		}
		a.metrics.ObserveOperation("create", "ok")
		return fmt.Sprintf("Éxito al crear la cita: %s para %s el %s. Queda pendiente de confirmación por el salón.",
			appt.ServiceType, appt.ClientName, appt.StartsAt.In(loc).Format("02/01/2006 a las 15:04"))

	case toolUpdateAppointment:
		var args updateArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "Error: no se pudieron interpretar los datos de la cita."
		}
		id, err := uuid.Parse(strings.TrimSpace(args.AppointmentID))
		if err != nil {
			return "Error: el identificador de la cita no es válido."
		}
		newStart, err := parseWhen(args.NewDate, loc)
		if err != nil {
			return "Error: la nueva fecha no es válida."
		}
		appt, err := a.booker.Reschedule(ctx, scheduling.RescheduleInput{
			ID:             id,
			PhoneNumber:    phone,
			NewStartsAt:    &newStart,
			NewServiceType: args.NewServiceType,
		})
		if err != nil {
			a.metrics.ObserveOperation("update", "error")
			return scheduling.UserMessage(err)
		}
		a.metrics.ObserveOperation("update", "ok")
		return fmt.Sprintf("Éxito al modificar la cita: %s queda para el %s.",
			appt.ServiceType, appt.StartsAt.In(loc).Format("02/01/2006 a las 15:04"))

	case toolCancelAppointment:
		var args cancelArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "Error: no se pudieron interpretar los datos de la cita."
		}
		id, err := uuid.Parse(strings.TrimSpace(args.AppointmentID))
		if err != nil {
			return "Error: el identificador de la cita no es válido."
		}
		if _, err := a.booker.Cancel(ctx, id, phone); err != nil {
			a.metrics.ObserveOperation("cancel", "error")
			return scheduling.UserMessage(err)
		}
		a.metrics.ObserveOperation("cancel", "ok")
		return "Éxito al cancelar la cita."

	default:
		return fmt.Sprintf("Error: herramienta desconocida %q.", call.Function.Name)
	}
}
