// Package whatsapp implements the outbound messaging port against the
// WhatsApp Cloud API. The channel id doubles as the Cloud API phone number
// id.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

const DefaultBaseURL = "https://graph.facebook.com/v21.0"

const requestTimeout = 30 * time.Second

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

var _ protocol.Sender = (*Client)(nil)

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    DefaultBaseURL,
		token:      token,
		logger:     logger.With("module", "whatsapp"),
	}
}

// NewClientWithBaseURL points the client at a non-default API host, used by
// tests and regional proxies.
func NewClientWithBaseURL(token, baseURL string, logger *slog.Logger) *Client {
	c := NewClient(token, logger)
	c.baseURL = baseURL

	return c
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) SendText(ctx context.Context, phone, text, channelID string) error {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}

	_, err := c.send(ctx, channelID, body)

	return err
}

func (c *Client) SendTemplate(ctx context.Context, phone, templateID string, parameters []string, channelID string) error {
	components := []map[string]any{}

	if len(parameters) > 0 {
		values := make([]map[string]any, len(parameters))
		for i, p := range parameters {
			values[i] = map[string]any{"type": "text", "text": p}
		}

		components = append(components, map[string]any{
			"type":       "body",
			"parameters": values,
		})
	}

	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template": map[string]any{
			"name":       templateID,
			"language":   map[string]any{"code": "en"},
			"components": components,
		},
	}

	_, err := c.send(ctx, channelID, body)

	return err
}

func (c *Client) SendInteractiveButtons(ctx context.Context, phone, text string, buttons []models.Button, channelID string) (string, error) {
	replies := make([]map[string]any, len(buttons))
	for i, button := range buttons {
		replies[i] = map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    button.ID,
				"title": button.Title,
			},
		}
	}

	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": text},
			"action": map[string]any{"buttons": replies},
		},
	}

	return c.send(ctx, channelID, body)
}

func (c *Client) send(ctx context.Context, channelID string, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call WhatsApp API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read WhatsApp API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			return "", fmt.Errorf("WhatsApp API error %d: %s", e.Error.Code, e.Error.Message)
		}

		return "", fmt.Errorf("WhatsApp API returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("failed to decode WhatsApp API response: %w", err)
	}

	if len(result.Messages) == 0 {
		return "", nil
	}

	return result.Messages[0].ID, nil
}
