package agent

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/chriscow/memora/pkg/normalize"
)

// Prompt clip keys.
const (
	ClipWelcome         = "welcome"
	ClipListening       = "listening"
	ClipRepeat          = "repeat"
	ClipReminderName    = "reminderName"
	ClipReminderDate    = "reminderDate"
	ClipReminderTime    = "reminderTime"
	ClipReminderRepeat  = "reminderRepeat"
	ClipEditReminder    = "editReminder"
	ClipDeleteReminder  = "deleteReminder"
	ClipLoading         = "loading"
	ClipReminderCreated = "reminderCreated"
	ClipWantToDelete    = "wantToDelete"
	ClipDeleted         = "deleted"
	ClipNoReminders     = "noReminders"
	ClipPresentation    = "presentation5"
)

// ClipFiles maps every prompt clip key to its default file name.
var ClipFiles = map[string]string{
	ClipWelcome:         "Bem_vindo.wav",
	ClipListening:       "Estou_ouvindo.wav",
	ClipRepeat:          "Por_favor_repita.wav",
	ClipReminderName:    "nome_lembrete.wav",
	ClipReminderDate:    "dia_lembrete.wav",
	ClipReminderTime:    "horario_lembrete.wav",
	ClipReminderRepeat:  "repetir_lembrete.wav",
	ClipEditReminder:    "Acao_pos_editar.wav",
	ClipDeleteReminder:  "acao_pos_excluir.wav",
	ClipLoading:         "estamos_carregando.wav",
	ClipReminderCreated: "criamos_lembrete.wav",
	ClipWantToDelete:    "quer_apagar.wav",
	ClipDeleted:         "apagou.wav",
	ClipNoReminders:     "sem_lembretes.wav",
	"presentation1":     "apresentacao1.wav",
	"presentation2":     "apresentacao2.wav",
	"presentation3":     "apresentacao3.wav",
	"presentation4":     "apresentacao4.wav",
	"presentation5":     "apresentacao5.wav",
}

// clipText is spoken when a clip cannot be played.
var clipText = map[string]string{
	ClipWelcome:         "Bem-vindo.",
	ClipListening:       "Estou ouvindo.",
	ClipRepeat:          "Por favor, repita.",
	ClipReminderName:    "Qual o nome do lembrete?",
	ClipReminderDate:    "Que dia gostaria de ser lembrado?",
	ClipReminderTime:    "Que horas gostaria de ser lembrado?",
	ClipReminderRepeat:  "Este é um lembrete que gostaria de repetir?",
	ClipDeleteReminder:  "Qual lembrete deseja excluir?",
	ClipReminderCreated: "Lembrete criado.",
	ClipWantToDelete:    "Deseja excluir este lembrete?",
	ClipDeleted:         "Lembrete excluído.",
	ClipNoReminders:     "Você não tem lembretes.",
	ClipPresentation:    "Olá, eu sou a Memora. Toque no microfone e diga criar lembrete.",
}

const (
	msgBadDate        = "Não entendi a data. Por favor, diga o dia e o mês."
	msgBadTime        = "Não entendi o horário. Por favor, diga a hora."
	msgAskDays        = "Quais dias da semana deseja repetir?"
	msgBadDays        = "Não entendi os dias da semana. Por favor, repita."
	msgIncomplete     = "Ainda faltam informações. Por favor, complete todos os dados do lembrete."
	msgSaveFailed     = "Erro ao salvar lembrete."
	msgMicPermission  = "Preciso de acesso ao microfone para funcionar."
	msgMicUnavailable = "Não consegui acessar o microfone."
	msgListening      = "Ouvindo..."
	msgNetwork        = "Sem conexão com o reconhecimento de voz."
	msgListFailed     = "Não foi possível carregar os lembretes."
	msgDeleteFailed   = "Não foi possível excluir o lembrete."
	msgConfirmDelete  = "Não entendi. Diga sim para excluir ou não para cancelar."
	msgCreated        = "Lembrete criado!"
)

// systemPhrases are fragments of the assistant's own prompts. A transcript
// containing one is the microphone hearing the speaker.
var systemPhrases = []string{
	"estou ouvindo",
	"por favor repita",
	"bem vindo",
	"qual o nome",
	"que dia",
	"que horas",
	"cancelado",
	"criamos lembrete",
	"lembrete criado",
	"você tem",
	"não entendi",
	"deseja excluir",
	"repetir",
	"dias da semana",
	"confirmar",
	"apresentacao",
	"ola eu sou a memora",
}

func isSystemPhrase(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range systemPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var cancelWords = map[string]bool{
	"parar":    true,
	"cancelar": true,
	"chega":    true,
	"silencio": true,
	"silêncio": true,
}

func isCancelWord(text string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(text))]
}

var listWords = []string{
	"listar", "lista", "ver", "mostrar", "mostre", "exibir",
	"meus lembretes", "todos os lembretes", "os lembretes",
	"quais lembretes", "quais sao os lembretes", "que lembretes",
}

// isListRequest reports whether folded asks to hear the reminders.
func isListRequest(folded string) bool {
	for _, w := range listWords {
		if strings.Contains(folded, w) {
			return true
		}
	}
	if strings.Contains(folded, "lembrete") && containsAny(folded, "tenho", "existe", "tem") {
		return true
	}
	return strings.Contains(folded, "quantos lembretes") && containsAny(folded, "tenho", "tem")
}

func isDeleteRequest(folded string) bool {
	return containsAny(folded, "excluir", "remover", "apagar")
}

func isAffirmative(folded string) bool {
	return hasWord(folded, "sim") || containsAny(folded, "quero", "repetir")
}

func isNegative(folded string) bool {
	return hasWord(folded, "nao")
}

// hasWord reports whether w appears in folded as a whole word.
func hasWord(folded, w string) bool {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range words {
		if f == w {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countMessage(n int) string {
	if n == 1 {
		return "Você tem 1 lembrete."
	}
	return fmt.Sprintf("Você tem %d lembretes.", n)
}

// describe renders r for speech.
func describe(r ReminderView) string {
	msg := fmt.Sprintf("%s, agendado para %s às %s.", r.Name, normalize.DateForSpeech(r.Date), r.Time)
	if r.Repeat && len(r.RepeatDays) > 0 {
		msg += fmt.Sprintf(" Este lembrete se repete nos seguintes dias: %s.", normalize.WeekdaysForSpeech(r.RepeatDays))
	}
	return msg
}

func announcement(r ReminderView) string {
	return fmt.Sprintf("Está na hora do seu lembrete: %s, às %s.", r.Name, r.Time)
}
