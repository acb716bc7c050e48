package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Service names a capability backend.
type Service string

const (
	ServiceLLM         Service = "llm"
	ServiceVision      Service = "vision"
	ServiceTranslation Service = "translation"
	ServiceTTS         Service = "tts"
	ServiceScheduler   Service = "scheduler"
	ServiceHHAPI       Service = "hh_api"
	ServiceDevice      Service = "device"
)

type Action string

const (
	ActionGenerateResponse Action = "generate_response"
	ActionTakeScreenshot   Action = "take_screenshot"
	ActionOCRText          Action = "ocr_text"
	ActionTranslateText    Action = "translate_text"
	ActionSynthesizeSpeech Action = "synthesize_speech"
	ActionCreateReminder   Action = "create_reminder"
	ActionSearchJobs       Action = "search_jobs"
	ActionReadClipboard    Action = "read_clipboard"
	ActionOpenApp          Action = "open_app"
)

// Capability names one external collaborator call.
type Capability struct {
	Service Service
	Action  Action
}

func (c Capability) String() string {
	return fmt.Sprintf("%s.%s", c.Service, c.Action)
}

var (
	CapGenerateResponse = Capability{ServiceLLM, ActionGenerateResponse}
	CapTakeScreenshot   = Capability{ServiceVision, ActionTakeScreenshot}
	CapOCRText          = Capability{ServiceVision, ActionOCRText}
	CapTranslateText    = Capability{ServiceTranslation, ActionTranslateText}
	CapSynthesizeSpeech = Capability{ServiceTTS, ActionSynthesizeSpeech}
	CapCreateReminder   = Capability{ServiceScheduler, ActionCreateReminder}
	CapSearchJobs       = Capability{ServiceHHAPI, ActionSearchJobs}
	CapReadClipboard    = Capability{ServiceDevice, ActionReadClipboard}
	CapOpenApp          = Capability{ServiceDevice, ActionOpenApp}
)

// StepRef is a parameter value bound to the result of an earlier step in the
// same plan. It is resolved from the plan's results map right before dispatch.
type StepRef struct {
	StepID string `json:"step_id"`
	// AsText resolves to the referenced result's text instead of the value itself.
	AsText bool `json:"as_text,omitempty"`
}

// StepParams are the inputs of one step. Values may be StepRefs until resolved.
type StepParams map[string]any

// String returns the value at key if it is a string.
func (p StepParams) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p StepParams) Int(key string) (int, bool) {
	return Slots{Slot(key): p[key]}.Int(Slot(key))
}

func (p StepParams) Clone() StepParams {
	out := make(StepParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Texter is implemented by capability results that carry user-facing text.
type Texter interface {
	Text() string
}

// TextOf extracts text from a capability result, if it has any.
func TextOf(v any) (string, bool) {
	switch r := v.(type) {
	case string:
		return r, r != ""
	case *Translation:
		if r == nil {
			return "", false
		}
		return r.TranslatedText, r.TranslatedText != ""
	case Texter:
		t := r.Text()
		return t, t != ""
	}
	return "", false
}

// Message is one chat turn sent to a text generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Generation struct {
	Content string `json:"text"`
	Usage   Usage  `json:"usage"`
	Model   string `json:"model"`
}

func (g *Generation) Text() string { return g.Content }

// Screenshot is an encoded image of the user's screen.
type Screenshot struct {
	ID        string    `json:"id"`
	Image     []byte    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	TakenAt   time.Time `json:"taken_at"`
}

type OCRResult struct {
	Content    string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (o *OCRResult) Text() string { return o.Content }

type Translation struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang,omitempty"`
	TargetLang     string `json:"target_lang"`
}

type Speech struct {
	Audio    []byte `json:"audio"`
	Format   string `json:"format"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language"`
	Spoken   string `json:"text"`
}

func (s *Speech) Text() string { return s.Spoken }

// ReminderRequest is built from remind and schedule_task slots.
type ReminderRequest struct {
	UserID   string
	Text     string
	When     string
	Duration time.Duration
	Priority int
}

type Reminder struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Content  string    `json:"text"`
	DueAt    time.Time `json:"due_at,omitempty"`
	When     string    `json:"when,omitempty"`
	Priority int       `json:"priority,omitempty"`
}

func (r *Reminder) Text() string {
	if r.When != "" {
		return fmt.Sprintf("Напоминание создано: %s (%s)", r.Content, r.When)
	}
	if !r.DueAt.IsZero() {
		return fmt.Sprintf("Напоминание создано: %s (%s)", r.Content, r.DueAt.Format("02.01 15:04"))
	}
	return "Напоминание создано: " + r.Content
}

// JobQuery is built from hh_search and jobs_digest slots.
type JobQuery struct {
	Text      string
	Location  string
	Seniority string
	SalaryMin int
	SalaryMax int
}

type Vacancy struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Employer  string `json:"employer"`
	Area      string `json:"area"`
	SalaryMin int    `json:"salary_min,omitempty"`
	SalaryMax int    `json:"salary_max,omitempty"`
	Currency  string `json:"currency,omitempty"`
	URL       string `json:"url"`
}

type JobSearchResult struct {
	Query     string    `json:"query"`
	Found     int       `json:"found"`
	Vacancies []Vacancy `json:"vacancies"`
}

func (j *JobSearchResult) Text() string {
	if j.Found == 0 || len(j.Vacancies) == 0 {
		return "Вакансий не найдено."
	}
	s := "Найдено вакансий: " + strconv.Itoa(j.Found) + "."
	for i, v := range j.Vacancies {
		if i == 3 {
			break
		}
		s += "\n" + v.Name
		if v.Employer != "" {
			s += " (" + v.Employer + ")"
		}
	}
	return s
}

type ClipboardContent struct {
	Content string `json:"text"`
}

func (c *ClipboardContent) Text() string { return c.Content }

type AppLaunch struct {
	App     string `json:"app"`
	Started bool   `json:"started"`
}

func (a *AppLaunch) Text() string {
	if !a.Started {
		return "Не удалось открыть " + a.App
	}
	return "Открываю " + a.App
}

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
