package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dvrmanager/internal/config"
)

const userAgent = "dvr-manager/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyMoveCompleted(ctx context.Context, title, finalPath string) error
	NotifyDuplicate(ctx context.Context, title, existingPath string) error
	NotifyQuarantined(ctx context.Context, filename, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	NotifyDaemonStarted(ctx context.Context) error
	NotifyDaemonStopped(ctx context.Context, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		moves:      cfg.Notifications.Moves,
		quarantine: cfg.Notifications.Quarantine,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	moves      bool
	quarantine bool
	errors     bool
}

func (n *ntfyService) NotifyMoveCompleted(ctx context.Context, title, finalPath string) error {
	if !n.moves {
		return nil
	}
	title = strings.TrimSpace(title)
	finalPath = strings.TrimSpace(finalPath)
	message := fmt.Sprintf("Added to library: %s", title)
	if finalPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, finalPath)
	}
	data := payload{
		title:   "DVR - Library Updated",
		message: message,
		tags:    []string{"dvr", "move", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDuplicate(ctx context.Context, title, existingPath string) error {
	if !n.moves {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "DVR - Duplicate Recording",
		message: fmt.Sprintf("Already in library: %s\nExisting: %s", title, strings.TrimSpace(existingPath)),
		tags:    []string{"dvr", "move", "duplicate"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQuarantined(ctx context.Context, filename, reason string) error {
	if !n.quarantine {
		return nil
	}
	filename = strings.TrimSpace(filename)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "DVR - Quarantined",
		message:  fmt.Sprintf("Quarantined: %s\nReason: %s\nManual review required", filename, reason),
		tags:     []string{"dvr", "quarantine", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "DVR - Error",
		message:  builder.String(),
		tags:     []string{"dvr", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context) error {
	data := payload{
		title:   "DVR - Started",
		message: "Recording manager daemon started",
		tags:    []string{"dvr", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	message := "Recording manager daemon stopped"
	if reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	data := payload{
		title:   "DVR - Stopped",
		message: message,
		tags:    []string{"dvr", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "DVR - Test",
		message:  "Notification system test",
		tags:     []string{"dvr", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyMoveCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyDuplicate(context.Context, string, string) error     { return nil }
func (noopService) NotifyQuarantined(context.Context, string, string) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) NotifyDaemonStarted(context.Context) error                 { return nil }
func (noopService) NotifyDaemonStopped(context.Context, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
