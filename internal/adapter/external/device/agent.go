package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/queue"
	"github.com/seu-repo/ai-maga/internal/domain"
)

const DefaultSubjectPrefix = "maga.device"

// Agent reaches the desktop companion running on the user's machine over
// request/reply. Subjects are "<prefix>.<user id>.<command>". It implements
// ports.DeviceAgent.
type Agent struct {
	requester queue.Requester
	prefix    string
	log       *zap.Logger
}

// NewAgent sends commands on subjects under prefix, one per action.
func NewAgent(requester queue.Requester, prefix string, log *zap.Logger) *Agent {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Agent{requester: requester, prefix: prefix, log: log}
}

type reply struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type screenshotData struct {
	ID       string    `json:"id"`
	Image    string    `json:"image"`
	MimeType string    `json:"mime_type"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	TakenAt  time.Time `json:"taken_at"`
}

// TakeScreenshot asks the user's agent for the current screen.
func (a *Agent) TakeScreenshot(ctx context.Context, userID string) (*domain.Screenshot, error) {
	var data screenshotData
	if err := a.call(ctx, userID, "screenshot", nil, &data); err != nil {
		return nil, err
	}

	img, err := base64.StdEncoding.DecodeString(data.Image)
	if err != nil {
		return nil, a.fail("screenshot", fmt.Errorf("decode image: %w", err))
	}
	if data.TakenAt.IsZero() {
		data.TakenAt = time.Now()
	}

	return &domain.Screenshot{
		ID:       data.ID,
		Image:    img,
		MimeType: data.MimeType,
		Width:    data.Width,
		Height:   data.Height,
		TakenAt:  data.TakenAt,
	}, nil
}

func (a *Agent) ReadClipboard(ctx context.Context, userID string) (*domain.ClipboardContent, error) {
	var data struct {
		Text string `json:"text"`
	}
	if err := a.call(ctx, userID, "clipboard.read", nil, &data); err != nil {
		return nil, err
	}
	return &domain.ClipboardContent{Content: data.Text}, nil
}

func (a *Agent) OpenApp(ctx context.Context, userID, app string) (*domain.AppLaunch, error) {
	if app == "" {
		return nil, errors.New("open app: no application named")
	}

	var data struct {
		Started bool `json:"started"`
	}
	if err := a.call(ctx, userID, "app.open", map[string]string{"app": app}, &data); err != nil {
		return nil, err
	}
	return &domain.AppLaunch{App: app, Started: data.Started}, nil
}

func (a *Agent) call(ctx context.Context, userID, command string, in, out any) error {
	payload := []byte("{}")
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal %s: %w", command, err)
		}
	}

	subject := fmt.Sprintf("%s.%s.%s", a.prefix, userID, command)
	raw, err := a.requester.Request(ctx, subject, payload)
	if err != nil {
		a.log.Warn("Device agent unreachable", zap.String("subject", subject), zap.Error(err))
		return a.fail(command, err)
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return a.fail(command, fmt.Errorf("decode reply: %w", err))
	}
	if !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "agent refused"
		}
		return a.fail(command, errors.New(msg))
	}
	if out != nil && len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, out); err != nil {
			return a.fail(command, fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

func (a *Agent) fail(command string, err error) error {
	return &domain.ExternalServiceError{Service: "device." + command, Err: err}
}
