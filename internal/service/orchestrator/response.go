package orchestrator

import "github.com/seu-repo/ai-maga/internal/domain"

const (
	responseSuccess = "Готово! Команда выполнена успешно."
	responseFailed  = "Не удалось выполнить команду."
	responseTimeout = "Не успел выполнить команду вовремя. Попробуй ещё раз."
)

var acknowledgements = map[domain.Intent]string{
	domain.IntentWake:      wakeGreeting,
	domain.IntentSleep:     "Ухожу в спящий режим.",
	domain.IntentPause:     "Пауза.",
	domain.IntentResume:    "Продолжаю.",
	domain.IntentSetLang:   "Язык переключён.",
	domain.IntentSetVolume: "Громкость изменена.",
}

// composeResponse turns a finished plan into the single sentence shown or
// spoken to the user.
func composeResponse(plan *domain.ActionPlan) string {
	switch plan.Status() {
	case domain.PlanFailed:
		return responseFailed
	case domain.PlanTimeout:
		return responseTimeout
	}

	if last, ok := plan.LastResult(); ok {
		if text, ok := domain.TextOf(last); ok {
			return text
		}
	}
	if ack, ok := acknowledgements[plan.Intent]; ok {
		return ack
	}
	return responseSuccess
}
