package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
}

// New returns the HTTP API mailer when a key is configured, otherwise a mailer
// that only logs what it would have sent.
func New(cfg Config, logger *zap.Logger) Mailer {
	if cfg.APIURL == "" || cfg.APIKey == "" {
		logger.Warn("E-mail provider not configured, messages will only be logged")
		return NewLogMailer(logger)
	}
	return &apiMailer{
		url:    strings.TrimRight(cfg.APIURL, "/") + "/emails",
		apiKey: cfg.APIKey,
		from:   cfg.From,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type apiMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
	logger *zap.Logger
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (m *apiMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode e-mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build e-mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return domain.Transient("e-mail provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("e-mail provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 500 {
			return domain.Transient("e-mail provider unavailable", err)
		}
		return err
	}
	m.logger.Debug("E-mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("E-mail not sent, provider not configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text))
	return nil
}
