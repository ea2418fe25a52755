// Package notify provides Notifier implementations for the repair core.
// Delivery transports mirror what the deployment actually has: a webhook
// relay in production, structured logs in development, memory in tests.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fixflow-io/fixflow/internal/repair"
	"go.uber.org/zap"
)

// LogMailer logs the message instead of delivering it. Default backend.
type LogMailer struct {
	Logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer { return &LogMailer{Logger: logger} }

func (m *LogMailer) Send(ctx context.Context, msg repair.Message) error {
	if m.Logger != nil {
		m.Logger.Info("notification",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("branch", msg.Branch),
		)
	}
	return nil
}

// WebhookMailer posts the message to an external delivery relay.
type WebhookMailer struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookMailer(url, token string) *WebhookMailer {
	return &WebhookMailer{URL: url, Token: token, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (m *WebhookMailer) Send(ctx context.Context, msg repair.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.Token)
	}
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("delivery relay rejected the message")
	}
	return nil
}

// MemoryMailer records messages for assertions; FailWith forces errors.
type MemoryMailer struct {
	mu       sync.Mutex
	Sent     []repair.Message
	FailWith error
}

func NewMemoryMailer() *MemoryMailer { return &MemoryMailer{} }

func (m *MemoryMailer) Send(ctx context.Context, msg repair.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages returns a copy of everything delivered so far.
func (m *MemoryMailer) Messages() []repair.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repair.Message(nil), m.Sent...)
}
