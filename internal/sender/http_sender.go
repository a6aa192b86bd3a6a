package sender

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
)

// HTTPSender posts {"phone","message"} to the agent's REST send endpoint.
type HTTPSender struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSender returns a sender without a client-side timeout; each send is
// bounded by its context.
func NewHTTPSender(baseURL, token string, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
		logger:  logger,
	}
}

func (s *HTTPSender) Send(ctx context.Context, phone, body string) error {
	start := time.Now()

	payload, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": body,
	})
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	url := s.baseURL + "/api/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent http: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Debug("agent rejected send",
			zap.String("phone", phone),
			zap.Int("status", resp.StatusCode),
			zap.Duration("took", time.Since(start)))
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, agentMessage(respBody))
	}
	return nil
}

// agentMessage extracts {"message": ...} from an error body when present.
func agentMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
