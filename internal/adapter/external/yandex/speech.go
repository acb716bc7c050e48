package yandex

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

var speechLocales = map[string]string{
	"ru": "ru-RU",
	"en": "en-US",
	"de": "de-DE",
	"kk": "kk-KK",
	"uz": "uz-UZ",
	"he": "he-IL",
}

// Speech synthesizes audio with SpeechKit and implements ports.SpeechSynthesizer.
type Speech struct {
	cfg  Config
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

// NewSpeech returns a SpeechKit synthesis client.
func NewSpeech(cfg Config, httpClient *circuitbreaker.HTTPClient, log *zap.Logger) (*Speech, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Speech{cfg: cfg, http: httpClient, log: log}, nil
}

// Synthesize picks the voice by lang. Unknown or empty languages get the Russian voice.
func (s *Speech) Synthesize(ctx context.Context, text, lang string) (*domain.Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("tts: nothing to say")
	}

	locale, voice := s.voiceFor(lang)
	form := url.Values{
		"text":     {text},
		"lang":     {locale},
		"voice":    {voice},
		"format":   {s.cfg.AudioFormat},
		"folderId": {s.cfg.FolderID},
	}
	if s.cfg.AudioFormat == "lpcm" {
		form.Set("sampleRateHertz", "16000")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TTSURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	for k, v := range s.cfg.header() {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	audio, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, &domain.ExternalServiceError{Service: "yandex_tts", Err: errors.New("no audio in reply")}
	}

	s.log.Debug("Speech synthesized",
		zap.String("lang", locale),
		zap.String("voice", voice),
		zap.Int("bytes", len(audio)),
	)

	return &domain.Speech{
		Audio:    audio,
		Format:   s.cfg.AudioFormat,
		Voice:    voice,
		Language: locale,
		Spoken:   text,
	}, nil
}

func (s *Speech) voiceFor(lang string) (locale, voice string) {
	locale = "ru-RU"
	if l, ok := speechLocales[strings.ToLower(lang)]; ok {
		locale = l
	} else if strings.Contains(lang, "-") {
		locale = lang
	}
	if strings.HasPrefix(locale, "en") {
		return locale, s.cfg.VoiceEN
	}
	return locale, s.cfg.Voice
}
