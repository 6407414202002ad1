package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
)

// buildSystemPrompt renders the assistant persona with everything the model
// needs to book without guessing: the menu with durations, the lunch closure,
// the current salon-local time and the client's upcoming appointments with
// their ids.
func buildSystemPrompt(settings *salon.Settings, now time.Time, upcoming []scheduling.Appointment) string {
	loc := settings.Location()
	local := now.In(loc)

	var b strings.Builder
	fmt.Fprintf(&b, "Eres %s, la asistente virtual de %s. Atiendes a los clientes por WhatsApp en español, con un tono cercano y profesional.\n\n",
		settings.AssistantName, settings.SalonName)

	b.WriteString("SERVICIOS Y DURACIONES:\n")
	for _, svc := range settings.Services {
		if svc.Price > 0 {
			fmt.Fprintf(&b, "- %s: %d minutos, %.2f €\n", svc.Name, svc.DurationMinutes, svc.Price)
		} else {
			fmt.Fprintf(&b, "- %s: %d minutos\n", svc.Name, svc.DurationMinutes)
		}
	}
	b.WriteString("Para servicios que no estén en la lista asume una duración de 60 minutos.\n\n")

	fmt.Fprintf(&b, "HORARIO: el salón cierra de %s a %s (hora de comida). Nunca ofrezcas ni confirmes citas que empiecen en ese tramo.\n",
		settings.ClosedStart, settings.ClosedEnd)
	if settings.Address != "" {
		fmt.Fprintf(&b, "DIRECCIÓN: %s\n", settings.Address)
	}
	fmt.Fprintf(&b, "FECHA Y HORA ACTUAL: %s (%s)\n\n", local.Format("Monday 2 January 2006, 15:04"), settings.Timezone)

	if len(upcoming) > 0 {
		b.WriteString("CITAS PRÓXIMAS DE ESTE CLIENTE:\n")
		for _, appt := range upcoming {
			fmt.Fprintf(&b, "- id %s: %s el %s (%s)\n",
				appt.ID, appt.ServiceType, appt.StartsAt.In(loc).Format("02/01/2006 a las 15:04"), statusSpanish(appt.Status))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Este cliente no tiene citas próximas.\n\n")
	}

	b.WriteString("REGLAS DE ORO:\n" +
		"1. Antes de crear una cita confirma con el cliente el nombre, el servicio y la fecha/hora exacta.\n" +
		"2. Usa las herramientas para crear, modificar o cancelar citas; nunca digas que una cita está hecha sin haber llamado a la herramienta.\n" +
		"3. Para modificar o cancelar usa el id que aparece en la lista de citas del cliente; no lo inventes ni se lo pidas al cliente.\n" +
		"4. Si la herramienta devuelve un error, explícalo con tus palabras y propón una alternativa.\n" +
		"5. Interpreta fechas relativas (mañana, el martes) respecto a la fecha actual indicada arriba y envíalas en formato ISO 8601 con la zona horaria del salón.\n" +
		"6. Responde siempre en español y mantén los mensajes breves, es una conversación de WhatsApp.")
	return b.String()
}

func statusSpanish(s scheduling.Status) string {
	switch s {
	case scheduling.StatusPending:
		return "pendiente de confirmar"
	case scheduling.StatusConfirmed:
		return "confirmada"
	case scheduling.StatusCancelled:
		return "cancelada"
	default:
		return string(s)
	}
}
