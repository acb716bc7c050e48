package yandex

import (
	"errors"
	"net/http"
)

const (
	DefaultTranslateURL = "https://translate.api.cloud.yandex.net/translate/v2/translate"
	DefaultOCRURL       = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
	DefaultTTSURL       = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"
)

// Config is shared by the Yandex Cloud capability clients.
type Config struct {
	FolderID string `mapstructure:"folder_id"`
	APIKey   string `mapstructure:"api_key"`
	IAMToken string `mapstructure:"iam_token"`

	TranslateURL string `mapstructure:"translate_url"`
	OCRURL       string `mapstructure:"ocr_url"`
	TTSURL       string `mapstructure:"tts_url"`

	Voice   string `mapstructure:"voice"`
	VoiceEN string `mapstructure:"voice_en"`
	// AudioFormat is one of lpcm, oggopus or mp3.
	AudioFormat string `mapstructure:"audio_format"`
}

func (c Config) withDefaults() (Config, error) {
	if c.FolderID == "" {
		return c, errors.New("yandex: folder id is required")
	}
	if c.APIKey == "" && c.IAMToken == "" {
		return c, errors.New("yandex: api key or iam token is required")
	}
	if c.TranslateURL == "" {
		c.TranslateURL = DefaultTranslateURL
	}
	if c.OCRURL == "" {
		c.OCRURL = DefaultOCRURL
	}
	if c.TTSURL == "" {
		c.TTSURL = DefaultTTSURL
	}
	if c.Voice == "" {
		c.Voice = "ermil"
	}
	if c.VoiceEN == "" {
		c.VoiceEN = "john"
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "oggopus"
	}
	return c, nil
}

func (c Config) header() http.Header {
	h := http.Header{"x-folder-id": {c.FolderID}}
	if c.APIKey != "" {
		h.Set("Authorization", "Api-Key "+c.APIKey)
	} else {
		h.Set("Authorization", "Bearer "+c.IAMToken)
	}
	return h
}
