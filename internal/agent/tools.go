package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Tool names the model can call.
const (
	toolCreateAppointment = "create_appointment"
	toolUpdateAppointment = "update_appointment"
	toolCancelAppointment = "cancel_appointment"
)

// bookingTools declares the function schema advertised to the model.
func bookingTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolCreateAppointment,
				Description: "Crea una cita nueva en el calendario de la peluquería. Úsala solo cuando tengas nombre, servicio y fecha/hora confirmados por el cliente.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"client_name": {"type": "string", "description": "Nombre del cliente"},
						"service_type": {"type": "string", "description": "Servicio solicitado, por ejemplo 'Corte/Peinado' o 'Keratina (Alisado)'"},
						"appointment_date": {"type": "string", "description": "Fecha y hora de inicio en formato ISO 8601, por ejemplo 2025-12-23T10:00:00+01:00"},
						"notes": {"type": "string", "description": "Notas para el salón, por ejemplo alergias o preferencias. Opcional"}
					},
					"required": ["client_name", "service_type", "appointment_date"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolUpdateAppointment,
				Description: "Cambia la fecha u hora de una cita existente del cliente. Necesita el identificador de la cita.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"appointment_id": {"type": "string", "description": "Identificador de la cita a modificar"},
						"new_date": {"type": "string", "description": "Nueva fecha y hora en formato ISO 8601"},
						"new_service_type": {"type": "string", "description": "Nuevo servicio, solo si el cliente lo cambia"}
					},
					"required": ["appointment_id", "new_date"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolCancelAppointment,
				Description: "Cancela una cita existente del cliente. Necesita el identificador de la cita.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"appointment_id": {"type": "string", "description": "Identificador de la cita a cancelar"}
					},
					"required": ["appointment_id"]
				}`),
			},
		},
	}
}

type createArgs struct {
	ClientName      string `json:"client_name"`
	ServiceType     string `json:"service_type"`
	AppointmentDate string `json:"appointment_date"`
	Notes           string `json:"notes"`
}

type updateArgs struct {
	AppointmentID  string `json:"appointment_id"`
	NewDate        string `json:"new_date"`
	NewServiceType string `json:"new_service_type"`
}

type cancelArgs struct {
	AppointmentID string `json:"appointment_id"`
}

// parseWhen accepts the date formats the model produces: full RFC 3339 or a
// local timestamp without offset, interpreted in the salon's zone.
func parseWhen(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("agent: empty date")
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("agent: unparseable date %q", value)
}
