package nlu

import (
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/seu-repo/ai-maga/internal/domain"
)

// DefaultPatterns returns the built-in Russian/English rule set. Order matters:
// on equal confidence the earlier pattern wins.
func DefaultPatterns() []domain.IntentPattern {
	return []domain.IntentPattern{
		// System
		{
			Intent:          domain.IntentWake,
			Matchers:        []string{`\b(мага|маша|алиса|слушай|проснись)\b`, `\b(wake|listen)\b`},
			ConfidenceBoost: 0.3,
		},
		{
			Intent:          domain.IntentSleep,
			Matchers:        []string{`\b(спи|усни|отключись|выключись)\b`, `\b(sleep|shutdown)\b`},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentPause,
			Matchers:        []string{`\b(пауза|стоп|подожди)\b`, `\b(pause|stop|wait)\b`},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentResume,
			Matchers:        []string{`\b(продолжи|продолжай|дальше)\b`, `\b(resume|continue)\b`},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentSetLang,
			Matchers:        []string{`(говори|отвечай|переключись)\s+на\s+\w+`, `\b(speak|switch to)\s+\w+`},
			OptionalSlots:   []domain.Slot{domain.SlotLang},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentSetVolume,
			Matchers:        []string{`\b(громче|тише|громкость\w*)\b`, `\b(louder|quieter|volume)\b`},
			ConfidenceBoost: 0.2,
		},

		// Conversation
		{
			Intent:          domain.IntentChatAnswer,
			Matchers:        []string{`\b(что|как|почему|зачем|расскажи)\b`, `\b(what|how|why|tell)\b`},
			OptionalSlots:   []domain.Slot{domain.SlotQuery},
			ConfidenceBoost: 0.1,
		},
		{
			Intent:          domain.IntentSummarize,
			Matchers:        []string{`\b(резюмируй|кратко|суммируй|перескажи)\b`, `\b(summarize|summary|tldr)\b`},
			OptionalSlots:   []domain.Slot{domain.SlotQuery},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentReadAloud,
			Matchers:        []string{`\b(прочитай|зачитай|озвучь)\b`, `\b(read aloud|read this|speak)\b`},
			OptionalSlots:   []domain.Slot{domain.SlotLang},
			ConfidenceBoost: 0.2,
		},

		// Jobs
		{
			Intent: domain.IntentHHSearch,
			Matchers: []string{
				`\b(найди|ищи|поиск)\b.*?(ваканси\w*|работ\w*|джоб\w*|hh)`,
				`\b(find|search)\b.*?(job\w*|vacanc\w*|work)`,
			},
			RequiredSlots:   []domain.Slot{domain.SlotQuery},
			OptionalSlots:   []domain.Slot{domain.SlotLocation, domain.SlotSalaryMin, domain.SlotSalaryMax, domain.SlotSeniority},
			ConfidenceBoost: 0.3,
		},
		{
			Intent:          domain.IntentJobsDigest,
			Matchers:        []string{`(дайджест|сводк\w*|подборк\w*).*?ваканси\w*`, `\b(jobs? digest)\b`},
			OptionalSlots:   []domain.Slot{domain.SlotQuery, domain.SlotChannel},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentComposeReply,
			Matchers:        []string{`\b(напиши|составь|ответь)\b.*?(ответ|письм\w*|сообщени\w*|работодател\w*)`, `\b(write|compose|draft)\b.*?(reply|letter|message)`},
			OptionalSlots:   []domain.Slot{domain.SlotQuery, domain.SlotChannel},
			ConfidenceBoost: 0.2,
		},

		// Vision
		{
			Intent: domain.IntentOCRTranslate,
			Matchers: []string{
				`(переведи|translate).*?(текст\w*|экран\w*|изображени\w*)`,
				`\btranslate\b.*?(text|screen|image)`,
			},
			OptionalSlots:   []domain.Slot{domain.SlotLang},
			ConfidenceBoost: 0.3,
		},
		{
			Intent:          domain.IntentDescribeScreen,
			Matchers:        []string{`(опиши|что\s+на)\s+(экран\w*|изображени\w*)`, `\b(describe|what'?s on)\b.*?(screen|image)`},
			ConfidenceBoost: 0.2,
		},

		// Routine
		{
			Intent:          domain.IntentRemind,
			Matchers:        []string{`\b(напомни|напоминание|remind)`},
			RequiredSlots:   []domain.Slot{domain.SlotQuery},
			OptionalSlots:   []domain.Slot{domain.SlotWhen, domain.SlotDuration, domain.SlotPriority},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentScheduleTask,
			Matchers:        []string{`\b(запланируй|добавь\s+задач\w*|поставь\s+задач\w*)`, `\b(schedule|add task)\b`},
			RequiredSlots:   []domain.Slot{domain.SlotQuery},
			OptionalSlots:   []domain.Slot{domain.SlotWhen, domain.SlotDuration, domain.SlotPriority},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentDailyDigest,
			Matchers:        []string{`(дайджест|сводк\w*|итоги)\s+(дня|за\s+день)`, `\b(daily digest|daily summary)\b`},
			OptionalSlots:   []domain.Slot{domain.SlotChannel},
			ConfidenceBoost: 0.2,
		},

		// Utilities
		{
			Intent:          domain.IntentOpenApp,
			Matchers:        []string{`\b(открой|запусти)\s+\w+`, `\b(open|launch|start)\s+\w+`},
			OptionalSlots:   []domain.Slot{domain.SlotQuery},
			ConfidenceBoost: 0.2,
		},
		{
			Intent:          domain.IntentTakeScreenshot,
			Matchers:        []string{`скриншот\w*|снимок|снимк\w*|screenshot`},
			ConfidenceBoost: 0.3,
		},
		{
			Intent:          domain.IntentClipboardRead,
			Matchers:        []string{`буфер\w*(\s+обмена)?`, `\bclipboard\b`},
			ConfidenceBoost: 0.2,
		},
	}
}

type compiledPattern struct {
	pattern  domain.IntentPattern
	matchers []*regexp2.Regexp
}

func compilePatterns(patterns []domain.IntentPattern) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		if len(p.Matchers) == 0 {
			return nil, fmt.Errorf("pattern %s has no matchers", p.Intent)
		}
		cp := compiledPattern{pattern: p}
		for _, src := range p.Matchers {
			re, err := regexp2.Compile(src, regexp2.IgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("pattern %s: compile %q: %w", p.Intent, src, err)
			}
			cp.matchers = append(cp.matchers, re)
		}
		out = append(out, cp)
	}
	return out, nil
}

// score computes the confidence of a pattern against normalized text. Lengths
// are in runes, which is what regexp2 reports.
func (cp compiledPattern) score(text []rune) float64 {
	if len(text) == 0 {
		return 0
	}
	bonus := 0.05
	if len(cp.matchers) == 1 {
		bonus = 0.1
	}

	best := 0.0
	for _, re := range cp.matchers {
		m, err := re.FindRunesMatch(text)
		if err != nil || m == nil {
			continue
		}
		coverage := float64(m.Length) / float64(len(text)) * 2.0
		conf := min(0.8, coverage) + bonus + cp.pattern.ConfidenceBoost
		conf = min(conf, 0.95)
		if conf > best {
			best = conf
		}
	}
	return best
}
