package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gamedock/internal/config"
)

const userAgent = "gamedock/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyDownloadCompleted(ctx context.Context, title string) error
	NotifyExtractionFailed(ctx context.Context, filename string, cause error) error
	NotifyGameSessionEnded(ctx context.Context, title string, duration time.Duration) error
	NotifyError(ctx context.Context, err error, operation string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, title string) error {
	if !n.settings.Downloads {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Gamedock - Installed",
		message: fmt.Sprintf("Ready to play: %s", title),
		tags:    []string{"gamedock", "download", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExtractionFailed(ctx context.Context, filename string, cause error) error {
	if !n.settings.Extraction {
		return nil
	}
	message := fmt.Sprintf("Extraction failed for %s", strings.TrimSpace(filename))
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	data := payload{
		title:    "Gamedock - Extraction Failed",
		message:  message,
		tags:     []string{"gamedock", "extraction", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGameSessionEnded(ctx context.Context, title string, duration time.Duration) error {
	if !n.settings.Sessions {
		return nil
	}
	data := payload{
		title:   "Gamedock - Session Ended",
		message: fmt.Sprintf("Played %s for %s", strings.TrimSpace(title), duration.Round(time.Second)),
		tags:    []string{"gamedock", "session", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, operation string) error {
	if !n.settings.Errors {
		return nil
	}
	data := payload{
		title:    "Gamedock - Error",
		message:  fmt.Sprintf("%s: %v", strings.TrimSpace(operation), err),
		tags:     []string{"gamedock", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Gamedock - Test",
		message: "Notifications are working.",
		tags:    []string{"gamedock", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected: %s", resp.Status)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyDownloadCompleted(context.Context, string) error { return nil }

func (noopService) NotifyExtractionFailed(context.Context, string, error) error { return nil }

func (noopService) NotifyGameSessionEnded(context.Context, string, time.Duration) error {
	return nil
}

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }

// Noop returns the no-op service for tests and optional wiring.
func Noop() Service { return noopService{} }
