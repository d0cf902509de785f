package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trackdesk/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
// Overridable in tests via MailClientConfig.BaseURL.
const sendGridAPIBase = "https://api.sendgrid.com"

// MailClientConfig holds the configuration for creating a MailClient.
type MailClientConfig struct {
	APIKey  types.SecretString
	BaseURL string // Override for testing; defaults to sendGridAPIBase
	Logger  *slog.Logger
}

// MailClient delivers pre-rendered emails through the SendGrid v3 Mail Send
// API via BaseClient, inheriting its circuit breaker, bounded retries, and
// error mapping. From the notifier's perspective a send is fire-and-forget:
// any error that escapes this client is logged by the caller and the next
// scan cycle re-attempts naturally.
type MailClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// NewMailClient creates a MailClient. The httpClient timeout should be kept
// short (10s) so a slow provider cannot pin a scan cycle past the guard's
// allowance.
func NewMailClient(httpClient *http.Client, cfg MailClientConfig) *MailClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"sendgrid",
		DefaultRetryPolicy(),
		"trackdesk/1.0",
		WithSleepFunc(time.Sleep),
	)

	return &MailClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// NewMailClientWithBase creates a MailClient with a pre-configured
// BaseClient. Useful for tests that want to control retry behavior.
func NewMailClientWithBase(base *BaseClient, cfg MailClientConfig) *MailClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MailClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Send transmits a pre-rendered email. SendGrid returns 202 Accepted on
// success; 429/5xx are retried by BaseClient, other 4xx responses are
// terminal for this attempt.
func (m *MailClient) Send(ctx context.Context, input types.SendInput) error {
	body, err := json.Marshal(m.buildMailPayload(input))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalError,
			"failed to marshal mail payload",
			err,
		)
	}

	reqURL := m.baseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalError,
			"failed to create mail send request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey.Unmask())

	resp, err := m.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		m.logger.InfoContext(ctx, "email accepted by provider",
			"recipients", len(input.To),
			"reference_id", input.ReferenceID,
		)
		return nil
	}

	// Other 4xx: terminal for this attempt. Read a little of the body for
	// the log line; SendGrid puts the reason there.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamMail,
		fmt.Sprintf("mail provider rejected send with %d", resp.StatusCode),
		nil,
		map[string]any{"response": string(snippet)},
	)
}

// sendGridMailPayload is the SendGrid v3 mail/send JSON request body with
// inline content (no dynamic templates; rendering happens client-side).
type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	// custom_args allows correlation with the task that triggered the send.
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// buildMailPayload maps a domain types.SendInput to the SendGrid v3 payload.
// Content order matters to SendGrid: text/plain must precede text/html.
func (m *MailClient) buildMailPayload(input types.SendInput) sendGridMailPayload {
	to := make([]sendGridAddress, 0, len(input.To))
	for _, addr := range input.To {
		to = append(to, sendGridAddress{Email: addr})
	}

	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{{To: to}},
		From: sendGridAddress{
			Email: input.From.Address,
			Name:  input.From.Name,
		},
		Subject: input.Subject,
		Content: []sendGridContent{
			{Type: "text/plain", Value: input.BodyText},
			{Type: "text/html", Value: input.BodyHTML},
		},
	}

	if input.ReferenceID != "" {
		payload.CustomArgs = map[string]string{
			"reference_id": input.ReferenceID,
		}
	}

	return payload
}
