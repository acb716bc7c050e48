package yandex

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

// Translator implements ports.Translator over Yandex Translate v2.
type Translator struct {
	cfg  Config
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

// NewTranslator returns a Yandex Translate client.
func NewTranslator(cfg Config, httpClient *circuitbreaker.HTTPClient, log *zap.Logger) (*Translator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Translator{cfg: cfg, http: httpClient, log: log}, nil
}

type translateRequest struct {
	FolderID           string   `json:"folderId"`
	Texts              []string `json:"texts"`
	TargetLanguageCode string   `json:"targetLanguageCode"`
	SourceLanguageCode string   `json:"sourceLanguageCode,omitempty"`
	Format             string   `json:"format"`
}

type translateResponse struct {
	Translations []struct {
		Text                 string `json:"text"`
		DetectedLanguageCode string `json:"detectedLanguageCode"`
	} `json:"translations"`
}

// Translate leaves the source language to auto-detection when sourceLang is empty.
func (t *Translator) Translate(ctx context.Context, text, targetLang, sourceLang string) (*domain.Translation, error) {
	if targetLang == "" {
		return nil, errors.New("translate: target language is required")
	}

	req := translateRequest{
		FolderID:           t.cfg.FolderID,
		Texts:              []string{text},
		TargetLanguageCode: targetLang,
		SourceLanguageCode: sourceLang,
		Format:             "PLAIN_TEXT",
	}

	var resp translateResponse
	if err := t.http.JSON(ctx, http.MethodPost, t.cfg.TranslateURL, t.cfg.header(), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Translations) == 0 {
		return nil, &domain.ExternalServiceError{Service: "yandex_translate", Err: errors.New("empty translation")}
	}

	tr := resp.Translations[0]
	if sourceLang == "" {
		sourceLang = tr.DetectedLanguageCode
	}

	t.log.Debug("Text translated",
		zap.String("source_lang", sourceLang),
		zap.String("target_lang", targetLang),
		zap.Int("chars", len([]rune(text))),
	)

	return &domain.Translation{
		SourceText:     text,
		TranslatedText: tr.Text,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
	}, nil
}
