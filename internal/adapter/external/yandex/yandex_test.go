package yandex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/ai-maga/internal/mocks"
)

func testHTTP(name string) *circuitbreaker.HTTPClient {
	log := zap.NewNop()
	return circuitbreaker.NewHTTPClient(name, circuitbreaker.HTTPClientSettings{}, circuitbreaker.NewManager(circuitbreaker.Settings{}, log), log)
}

func testConfig(srv *httptest.Server) Config {
	return Config{
		FolderID:     "b1g",
		APIKey:       "key",
		TranslateURL: srv.URL + "/translate",
		OCRURL:       srv.URL + "/ocr",
		TTSURL:       srv.URL + "/tts",
	}
}

func TestTranslator_Translate(t *testing.T) {
	gotCh := make(chan translateRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "Api-Key key", r.Header.Get("Authorization"))
		var req translateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotCh <- req
		_, _ = w.Write([]byte(`{"translations":[{"text":"Hello world","detectedLanguageCode":"ru"}]}`))
	}))
	defer srv.Close()

	tr, err := NewTranslator(testConfig(srv), testHTTP("yandex_translate"), zap.NewNop())
	require.NoError(t, err)

	res, err := tr.Translate(context.Background(), "Привет мир", "en", "")

	require.NoError(t, err)
	assert.Equal(t, "Hello world", res.TranslatedText)
	assert.Equal(t, "ru", res.SourceLang)
	assert.Equal(t, "en", res.TargetLang)
	assert.Equal(t, "Привет мир", res.SourceText)
	got := <-gotCh
	assert.Equal(t, translateRequest{FolderID: "b1g", Texts: []string{"Привет мир"}, TargetLanguageCode: "en", Format: "PLAIN_TEXT"}, got)
}

func TestTranslator_RequiresTarget(t *testing.T) {
	tr, err := NewTranslator(Config{FolderID: "f", APIKey: "k"}, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), "text", "", "")
	assert.Error(t, err)
}

func TestVision_RecognizeText(t *testing.T) {
	gotCh := make(chan ocrRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b1g", r.Header.Get("x-folder-id"))
		var req ocrRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotCh <- req
		_, _ = w.Write([]byte(`{"result":{"textAnnotation":{"fullText":"Hello from screen","blocks":[{"languages":[{"languageCode":"en"}]}]}}}`))
	}))
	defer srv.Close()

	device := &mocks.MockDeviceAgent{}
	v, err := NewVision(testConfig(srv), device, testHTTP("yandex_ocr"), zap.NewNop())
	require.NoError(t, err)

	shot, err := v.TakeScreenshot(context.Background(), "u1")
	require.NoError(t, err)
	shot.Image = []byte{0x89, 'P', 'N', 'G'}
	shot.MimeType = "image/png"

	res, err := v.RecognizeText(context.Background(), shot, "")

	require.NoError(t, err)
	assert.Equal(t, "Hello from screen", res.Text())
	assert.Equal(t, "en", res.Language)
	got := <-gotCh
	assert.Equal(t, "PNG", got.MimeType)
	assert.Equal(t, []string{"*"}, got.LanguageCodes)
	assert.Equal(t, base64.StdEncoding.EncodeToString(shot.Image), got.Content)
}

func TestVision_RejectsBadImages(t *testing.T) {
	v, err := NewVision(Config{FolderID: "f", APIKey: "k"}, &mocks.MockDeviceAgent{}, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = v.RecognizeText(context.Background(), &domain.Screenshot{}, "")
	assert.Error(t, err)

	_, err = v.RecognizeText(context.Background(), &domain.Screenshot{Image: make([]byte, maxImageBytes+1)}, "")
	assert.Error(t, err)

	_, err = NewVision(Config{FolderID: "f", APIKey: "k"}, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestSpeech_Synthesize(t *testing.T) {
	formCh := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		formCh <- form
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS..."))
	}))
	defer srv.Close()

	s, err := NewSpeech(testConfig(srv), testHTTP("yandex_tts"), zap.NewNop())
	require.NoError(t, err)

	res, err := s.Synthesize(context.Background(), "Hello", "en")

	require.NoError(t, err)
	assert.Equal(t, []byte("OggS..."), res.Audio)
	assert.Equal(t, "Hello", res.Text())
	form := <-formCh
	assert.Equal(t, "en-US", form.Get("lang"))
	assert.Equal(t, "john", form.Get("voice"))
	assert.Equal(t, "oggopus", form.Get("format"))
}

func TestSpeech_VoiceFor(t *testing.T) {
	s, err := NewSpeech(Config{FolderID: "f", APIKey: "k"}, nil, zap.NewNop())
	require.NoError(t, err)

	tests := []struct{ lang, locale, voice string }{
		{"", "ru-RU", "ermil"},
		{"ru", "ru-RU", "ermil"},
		{"EN", "en-US", "john"},
		{"de", "de-DE", "ermil"},
		{"en-GB", "en-GB", "john"},
		{"fr", "ru-RU", "ermil"},
	}
	for _, tt := range tests {
		locale, voice := s.voiceFor(tt.lang)
		assert.Equal(t, tt.locale, locale, tt.lang)
		assert.Equal(t, tt.voice, voice, tt.lang)
	}

	_, err = s.Synthesize(context.Background(), "  ", "ru")
	assert.Error(t, err)
}
