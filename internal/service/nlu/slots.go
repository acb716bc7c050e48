package nlu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/seu-repo/ai-maga/internal/domain"
)

func mustCompile(expr string) *regexp2.Regexp {
	return regexp2.MustCompile(expr, regexp2.IgnoreCase)
}

var (
	langRe = mustCompile(`\b(русск|английск|немецк|французск|испанск|китайск|russian|english|german|french|spanish|chinese)\w*`)

	langCodes = map[string]string{
		"русск":     "ru",
		"russian":   "ru",
		"английск":  "en",
		"english":   "en",
		"немецк":    "de",
		"german":    "de",
		"французск": "fr",
		"french":    "fr",
		"испанск":   "es",
		"spanish":   "es",
		"китайск":   "zh",
		"chinese":   "zh",
	}

	locationRe = mustCompile(`\b(в|in)\s+(\w+)`)

	// Words that follow "в"/"in" without being a place.
	notLocation = mustCompile(`^(\d+\w*|понедельник|вторник|среду|четверг|пятницу|субботу|воскресенье|утро\w*|вечер\w*|течени\w*|minutes?|hours?|days?|the|a|an|телеграм\w*|telegram|почт\w*|email|` +
		`русск\w*|английск\w*|немецк\w*|французск\w*|испанск\w*|китайск\w*|russian|english|german|french|spanish|chinese)$`)

	// Amounts may be written in digit groups: "100 000", "250\u00a0000".
	salaryRe      = mustCompile(`(?:\b(до|to|от|from)\s+)?\b(\d{1,3}(?:[ \u00a0\u202f]\d{3})+|\d{2,7})\s*(тыс\w*|руб\w*|rub\w*|rur|₽|k(?!\w)|к(?!\w))`)
	digitGroupSep = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

	seniorityRe = mustCompile(`\b(джун\w*|junior|младш\w*|мидл\w*|middle|mid|сеньор\w*|синьор\w*|senior|старш\w*|тимлид\w*|лид\w*|lead|ведущ\w*)\b`)

	searchQueryRe = mustCompile(`\b(найди|ищи|поиск|find|search)\s+(.+?)(?:\s+(?:в|на|от|до|с|in|from|\d+)\b|$)`)
	genericNounRe = mustCompile(`\b(ваканси\w*|работ\w*|джоб\w*|job\w*|vacanc\w*)\b`)

	remindQueryRe   = mustCompile(`\b(напомни|напоминание|запланируй|задач\w*|remind|schedule|task)\s+(.+?)(?:\s+(?:завтра|сегодня|послезавтра|через|в|на|tomorrow|today|in|at|on|\d+)\b|$)`)
	leadingFillerRe = mustCompile(`^(мне|нам|что|о|об|про|me|to|about|for)\s+`)

	appRe = mustCompile(`\b(открой|запусти|open|launch|start)\s+(.+)$`)

	dayRe  = mustCompile(`\b(послезавтра|завтра|сегодня|day after tomorrow|tomorrow|today)\b`)
	timeRe = mustCompile(`\b(в|at)\s+(\d{1,2})[:.](\d{2})\b`)

	durationRe = mustCompile(`\b(через|in)\s+(\d+\s*)?(мин\w*|час\w*|дн\w*|день|minutes?|mins?|hours?|days?)\b`)

	priorityRe = mustCompile(`\b(приоритет\w*|priority)\s+(\d)\b`)
	urgentRe   = mustCompile(`\b(срочн\w*|важн\w*|urgent\w*|asap|important)\b`)

	telegramRe = mustCompile(`\b(телеграм\w*|telegram|тг)\b`)
	emailRe    = mustCompile(`\b(почт\w*|email|e-mail|имейл\w*)\b`)

	spacesRe = mustCompile(`\s+`)
)

var seniorityLevels = []struct {
	level    string
	prefixes []string
}{
	{"junior", []string{"джун", "junior", "младш"}},
	{"middle", []string{"мидл", "middle", "mid"}},
	{"senior", []string{"сеньор", "синьор", "senior", "старш"}},
	{"lead", []string{"тимлид", "лид", "lead", "ведущ"}},
}

// extractSlots pulls every recognisable slot out of text for the given intent.
// It is a pure function of its inputs.
func extractSlots(text string, intent domain.Intent) domain.Slots {
	text = strings.TrimSpace(text)
	slots := domain.Slots{}

	if lang, ok := extractLang(text); ok {
		slots[domain.SlotLang] = lang
	}
	if loc, ok := extractLocation(text); ok {
		slots[domain.SlotLocation] = loc
	}
	extractSalary(text, slots)
	if level, ok := extractSeniority(text); ok {
		slots[domain.SlotSeniority] = level
	}
	if when, ok := extractWhen(text); ok {
		slots[domain.SlotWhen] = when
	}
	if minutes, ok := extractDuration(text); ok {
		slots[domain.SlotDuration] = minutes
	}
	if p, ok := extractPriority(text); ok {
		slots[domain.SlotPriority] = p
	}
	if ch, ok := extractChannel(text); ok {
		slots[domain.SlotChannel] = ch
	}

	var query string
	switch intent {
	case domain.IntentHHSearch, domain.IntentJobsDigest:
		query = extractSearchQuery(text)
	case domain.IntentRemind, domain.IntentScheduleTask:
		query = extractReminderQuery(text)
	case domain.IntentOpenApp:
		if g := firstGroup(appRe, text, 2); g != "" {
			query = g
		}
	}
	if query != "" {
		slots[domain.SlotQuery] = query
	}

	return slots
}

func firstGroup(re *regexp2.Regexp, text string, n int) string {
	m, err := re.FindStringMatch(text)
	if err != nil || m == nil {
		return ""
	}
	return strings.TrimSpace(m.GroupByNumber(n).String())
}

func extractLang(text string) (string, bool) {
	stem := strings.ToLower(firstGroup(langRe, text, 1))
	code, ok := langCodes[stem]
	return code, ok
}

func extractLocation(text string) (string, bool) {
	m, err := locationRe.FindStringMatch(text)
	for err == nil && m != nil {
		word := m.GroupByNumber(2).String()
		if ok, _ := notLocation.MatchString(word); !ok {
			return word, true
		}
		m, err = locationRe.FindNextMatch(m)
	}
	return "", false
}

func extractSalary(text string, slots domain.Slots) {
	m, err := salaryRe.FindStringMatch(text)
	for err == nil && m != nil {
		n, convErr := strconv.Atoi(digitGroupSep.Replace(m.GroupByNumber(2).String()))
		if convErr == nil && n > 0 {
			unit := strings.ToLower(m.GroupByNumber(3).String())
			if strings.HasPrefix(unit, "тыс") || unit == "k" || unit == "к" {
				n *= 1000
			}
			key := domain.SlotSalaryMin
			switch strings.ToLower(m.GroupByNumber(1).String()) {
			case "до", "to":
				key = domain.SlotSalaryMax
			}
			if _, seen := slots[key]; !seen {
				slots[key] = n
			}
		}
		m, err = salaryRe.FindNextMatch(m)
	}
}

func extractSeniority(text string) (string, bool) {
	word := strings.ToLower(firstGroup(seniorityRe, text, 1))
	if word == "" {
		return "", false
	}
	for _, lvl := range seniorityLevels {
		for _, p := range lvl.prefixes {
			if strings.HasPrefix(word, p) {
				return lvl.level, true
			}
		}
	}
	return "", false
}

func extractSearchQuery(text string) string {
	q := firstGroup(searchQueryRe, text, 2)
	if q == "" {
		return ""
	}
	q, _ = genericNounRe.Replace(q, "", -1, -1)
	return cleanQuery(q)
}

func extractReminderQuery(text string) string {
	return cleanQuery(firstGroup(remindQueryRe, text, 2))
}

func cleanQuery(q string) string {
	q, _ = spacesRe.Replace(q, " ", -1, -1)
	q = strings.TrimSpace(q)
	for {
		next, err := leadingFillerRe.Replace(q, "", -1, 1)
		if err != nil || next == q {
			break
		}
		q = strings.TrimSpace(next)
	}
	return q
}

func extractWhen(text string) (string, bool) {
	var day string
	switch strings.ToLower(firstGroup(dayRe, text, 1)) {
	case "сегодня", "today":
		day = "today"
	case "завтра", "tomorrow":
		day = "tomorrow"
	case "послезавтра", "day after tomorrow":
		day = "day_after_tomorrow"
	}

	var clock string
	if m, err := timeRe.FindStringMatch(text); err == nil && m != nil {
		h, _ := strconv.Atoi(m.GroupByNumber(2).String())
		mm, _ := strconv.Atoi(m.GroupByNumber(3).String())
		if h < 24 && mm < 60 {
			clock = fmt.Sprintf("%02d:%02d", h, mm)
		}
	}

	switch {
	case day != "" && clock != "":
		return day + " " + clock, true
	case day != "":
		return day, true
	case clock != "":
		return clock, true
	}
	return "", false
}

func extractDuration(text string) (int, bool) {
	m, err := durationRe.FindStringMatch(text)
	if err != nil || m == nil {
		return 0, false
	}
	n := 1
	if raw := strings.TrimSpace(m.GroupByNumber(2).String()); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, false
		}
		n = v
	}
	unit := strings.ToLower(m.GroupByNumber(3).String())
	switch {
	case strings.HasPrefix(unit, "час"), strings.HasPrefix(unit, "hour"):
		return n * 60, true
	case strings.HasPrefix(unit, "дн"), unit == "день", strings.HasPrefix(unit, "day"):
		return n * 24 * 60, true
	}
	return n, true
}

func extractPriority(text string) (int, bool) {
	if raw := firstGroup(priorityRe, text, 2); raw != "" {
		p, _ := strconv.Atoi(raw)
		return max(1, min(5, p)), true
	}
	if ok, _ := urgentRe.MatchString(text); ok {
		return 1, true
	}
	return 0, false
}

func extractChannel(text string) (string, bool) {
	if ok, _ := telegramRe.MatchString(text); ok {
		return "telegram", true
	}
	if ok, _ := emailRe.MatchString(text); ok {
		return "email", true
	}
	return "", false
}
