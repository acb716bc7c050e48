package yandex

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/ai-maga/internal/ports"
)

const maxImageBytes = 5 << 20

// Vision recognizes text with Yandex Vision OCR. Screenshots come from the
// user's desktop agent, so it implements ports.VisionService as a whole.
type Vision struct {
	ports.ScreenCapturer
	cfg  Config
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

// NewVision recognizes text with Yandex Vision. Screenshots come from capturer.
func NewVision(cfg Config, capturer ports.ScreenCapturer, httpClient *circuitbreaker.HTTPClient, log *zap.Logger) (*Vision, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if capturer == nil {
		return nil, errors.New("vision: screen capturer is required")
	}
	return &Vision{ScreenCapturer: capturer, cfg: cfg, http: httpClient, log: log}, nil
}

type ocrRequest struct {
	MimeType      string   `json:"mimeType"`
	LanguageCodes []string `json:"languageCodes"`
	Model         string   `json:"model"`
	Content       string   `json:"content"`
}

type ocrResponse struct {
	Result struct {
		TextAnnotation struct {
			FullText string `json:"fullText"`
			Blocks   []struct {
				Languages []struct {
					LanguageCode string `json:"languageCode"`
				} `json:"languages"`
			} `json:"blocks"`
		} `json:"textAnnotation"`
	} `json:"result"`
}

// RecognizeText reads the text in shot. An empty lang lets the service detect it.
func (v *Vision) RecognizeText(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
	if shot == nil || len(shot.Image) == 0 {
		return nil, errors.New("ocr: empty image")
	}
	if len(shot.Image) > maxImageBytes {
		return nil, errors.New("ocr: image exceeds 5 MB")
	}

	mime := ocrMimeType(shot.MimeType)
	codes := []string{"*"}
	if lang != "" {
		codes = []string{lang}
	}

	req := ocrRequest{
		MimeType:      mime,
		LanguageCodes: codes,
		Model:         "page",
		Content:       base64.StdEncoding.EncodeToString(shot.Image),
	}

	var resp ocrResponse
	if err := v.http.JSON(ctx, http.MethodPost, v.cfg.OCRURL, v.cfg.header(), req, &resp); err != nil {
		return nil, err
	}

	annotation := resp.Result.TextAnnotation
	detected := lang
	if detected == "" {
		for _, b := range annotation.Blocks {
			if len(b.Languages) > 0 {
				detected = b.Languages[0].LanguageCode
				break
			}
		}
	}

	v.log.Debug("Text recognized",
		zap.String("screenshot_id", shot.ID),
		zap.String("language", detected),
		zap.Int("chars", len([]rune(annotation.FullText))),
	)

	return &domain.OCRResult{Content: annotation.FullText, Language: detected}, nil
}

func ocrMimeType(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg", "jpeg", "jpg":
		return "JPEG"
	case "application/pdf", "pdf":
		return "PDF"
	}
	return "PNG"
}
