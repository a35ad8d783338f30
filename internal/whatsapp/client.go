// Package whatsapp is the transport boundary: it executes SendIntents
// against the WhatsApp Cloud (Graph) API and parses inbound webhook
// payloads into boundary messages.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
)

// SendError classifies a failed delivery. Retryable failures (timeouts,
// 429, 5xx) may be retried by the caller; others must not be.
type SendError struct {
	StatusCode int
	Retryable  bool
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send failed: status=%d retryable=%t body=%s",
		e.StatusCode, e.Retryable, e.Body)
}

// IsRetryable reports whether err is a retryable transport failure.
func IsRetryable(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Retryable
	}
	// Network-level errors (timeouts, resets) are worth one more try.
	return err != nil
}

// Client talks to the Graph API messages endpoint.
type Client struct {
	apiURL      string
	phoneID     string
	token       string
	verifyToken string
	http        *http.Client
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewClient builds a Graph API client. sendTimeout bounds each Transport
// call; the limiter paces outbound requests to stay under platform limits.
func NewClient(apiURL, phoneID, token, verifyToken string, sendTimeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		apiURL:      apiURL,
		phoneID:     phoneID,
		token:       token,
		verifyToken: verifyToken,
		http:        &http.Client{Timeout: sendTimeout},
		limiter:     rate.NewLimiter(rate.Limit(20), 40),
		log:         log,
	}
}

// VerifyWebhook implements the hub.challenge handshake. It returns the
// challenge to echo back, or false when the token does not match.
func (c *Client) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == c.verifyToken && challenge != "" {
		return challenge, true
	}
	return "", false
}

// Send executes one SendIntent. It satisfies the Transport interfaces of
// the router and the scheduler.
func (c *Client) Send(ctx context.Context, intent domain.SendIntent) error {
	payload, err := buildPayload(intent)
	if err != nil {
		return err
	}
	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	c.log.Warn("graph api error response",
		zap.Int("status", resp.StatusCode),
		zap.Bool("retryable", retryable),
	)
	return &SendError{StatusCode: resp.StatusCode, Retryable: retryable, Body: string(respBody)}
}

// buildPayload renders a SendIntent as a Cloud API messages payload.
func buildPayload(in domain.SendIntent) (map[string]any, error) {
	base := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                in.To,
	}

	switch in.Kind {
	case domain.IntentText:
		base["type"] = "text"
		base["text"] = map[string]any{"body": in.Body}

	case domain.IntentTemplate:
		tpl := map[string]any{
			"name":     in.Template,
			"language": map[string]any{"code": "es"},
		}
		if len(in.Params) > 0 {
			params := make([]map[string]any, 0, len(in.Params))
			for _, p := range in.Params {
				params = append(params, map[string]any{"type": "text", "text": p})
			}
			tpl["components"] = []map[string]any{{"type": "body", "parameters": params}}
		}
		base["type"] = "template"
		base["template"] = tpl

	case domain.IntentList:
		rows := make([]map[string]any, 0, len(in.Items))
		for _, item := range in.Items {
			row := map[string]any{"id": item.ID, "title": item.Title}
			if item.Description != "" {
				row["description"] = item.Description
			}
			rows = append(rows, row)
		}
		interactive := map[string]any{
			"type": "list",
			"body": map[string]any{"text": in.Body},
			"action": map[string]any{
				"button":   in.ButtonText,
				"sections": []map[string]any{{"title": "Opciones", "rows": rows}},
			},
		}
		if in.Header != "" {
			interactive["header"] = map[string]any{"type": "text", "text": in.Header}
		}
		if in.Footer != "" {
			interactive["footer"] = map[string]any{"text": in.Footer}
		}
		base["type"] = "interactive"
		base["interactive"] = interactive

	case domain.IntentButtons:
		buttons := make([]map[string]any, 0, len(in.Buttons))
		for _, b := range in.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": b.ID, "title": b.Title},
			})
		}
		interactive := map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": in.Body},
			"action": map[string]any{"buttons": buttons},
		}
		if in.Header != "" {
			interactive["header"] = map[string]any{"type": "text", "text": in.Header}
		}
		if in.Footer != "" {
			interactive["footer"] = map[string]any{"text": in.Footer}
		}
		base["type"] = "interactive"
		base["interactive"] = interactive

	default:
		return nil, fmt.Errorf("unknown intent kind %d", in.Kind)
	}
	return base, nil
}
