package engine

import (
	"fmt"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
)

// WhatsApp template names registered for the bot.
const (
	templateWelcome   = "bienvenida"
	templateReturning = "confirmacion_pregunta"
)

const (
	textGoodbye = "Entendido. No recibirás más preguntas. " +
		"Escríbenos cuando quieras volver a empezar."
	textHourPrompt = "¿A qué hora deseas recibir tu pregunta? " +
		"Responde con un número entre 0 y 23 (por ejemplo: 14)."
	textHourReprompt = "Lo siento, la hora debe ser un número entre 0 y 23. " +
		"Por favor, intenta nuevamente."
	textStaleAnswer = "Esa pregunta ya no está activa. " +
		"Te enviaremos una nueva en tu próximo horario programado."
	textFallback = "No entendí tu mensaje. Responde usando los botones o listas, " +
		"o escribe \"nueva pregunta\" para recibir una pregunta ahora."
	textNoQuestions = "Lo sentimos, no hay preguntas disponibles en este momento. " +
		"Te avisaremos en tu próximo horario programado."
	questionHeader     = "Pregunta Médica"
	questionFooter     = "Selecciona la respuesta que consideres correcta."
	questionButtonText = "Ver Opciones"
	confirmHeader      = "¿Estás listo para comenzar con las preguntas médicas?"
	dayListBody        = "Por favor selecciona el día de la semana en que deseas recibir las preguntas:"
	dayListButtonText  = "Elegir día"
)

func scheduleConfirmation(dayName string, hour int) string {
	return fmt.Sprintf(
		"¡Perfecto! Has programado recibir tus preguntas cada %s a las %d:00 horas. "+
			"Recibirás tu primera pregunta a continuación. ¡Gracias por suscribirte!",
		dayName, hour,
	)
}

func feedbackCorrect(correctAnswer string) string {
	return fmt.Sprintf("¡Correcto! La respuesta es: %s\n\nSeguirás recibiendo preguntas semanalmente.",
		correctAnswer)
}

func feedbackIncorrect(correctAnswer string) string {
	return fmt.Sprintf("Incorrecto. La respuesta correcta es: %s\n\nSeguirás recibiendo preguntas semanalmente.",
		correctAnswer)
}

// confirmButtonsIntent asks the yes/no onboarding question.
func confirmButtonsIntent(to string) domain.SendIntent {
	return domain.SendIntent{
		Kind:   domain.IntentButtons,
		To:     to,
		Header: confirmHeader,
		Body:   "Responde Sí para configurar tu horario, o No si prefieres no recibir preguntas.",
		Footer: "Banquea - Bot de preguntas médicas",
		Buttons: []domain.ButtonOption{
			{ID: domain.ButtonYes, Title: "Sí"},
			{ID: domain.ButtonNo, Title: "No"},
		},
	}
}

// dayListIntent offers the seven weekdays as an interactive list.
func dayListIntent(to string) domain.SendIntent {
	items := make([]domain.ListItem, 0, 7)
	for d := 0; d < 7; d++ {
		name, _ := domain.DayName(d)
		items = append(items, domain.ListItem{
			ID:    fmt.Sprintf("day_%d", d),
			Title: name,
		})
	}
	return domain.SendIntent{
		Kind:       domain.IntentList,
		To:         to,
		Body:       dayListBody,
		ButtonText: dayListButtonText,
		Items:      items,
	}
}
