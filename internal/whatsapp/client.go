package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	defaultUserAgent  = "carezw-appointment-bot/0.1"
)

var tracer = otel.Tracer("carezw.internal.whatsapp")

// Config controls how the Cloud API client behaves.
type Config struct {
	BaseURL       string
	APIVersion    string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client wraps the WhatsApp Cloud API message endpoints.
type Client struct {
	baseURL       string
	apiVersion    string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp: phone number id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsapp: recipient is required")
	}
	payload := textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = body
	return c.send(ctx, "whatsapp.send_text", payload)
}

// SendImage sends an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, to, link, caption string) (*SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsapp: recipient is required")
	}
	if strings.TrimSpace(link) == "" {
		return nil, errors.New("whatsapp: image link is required")
	}
	payload := imagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
	}
	payload.Image.Link = link
	payload.Image.Caption = caption
	return c.send(ctx, "whatsapp.send_image", payload)
}

// SendInteractiveButtons sends a reply-button message (max three buttons).
func (c *Client) SendInteractiveButtons(ctx context.Context, to, bodyText string, buttons []Button) (*SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsapp: recipient is required")
	}
	if len(buttons) == 0 || len(buttons) > 3 {
		return nil, fmt.Errorf("whatsapp: button count must be 1-3, got %d", len(buttons))
	}
	payload := interactivePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
	}
	payload.Interactive.Type = "button"
	payload.Interactive.Body.Text = bodyText
	for _, b := range buttons {
		wb := wireButton{Type: "reply"}
		wb.Reply.ID = b.ID
		wb.Reply.Title = b.Title
		payload.Interactive.Action.Buttons = append(payload.Interactive.Action.Buttons, wb)
	}
	return c.send(ctx, "whatsapp.send_buttons", payload)
}

// SendInteractiveList sends a list message with sectioned rows.
func (c *Client) SendInteractiveList(ctx context.Context, to, bodyText, buttonLabel string, sections []Section) (*SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsapp: recipient is required")
	}
	if len(sections) == 0 {
		return nil, errors.New("whatsapp: at least one section is required")
	}
	if strings.TrimSpace(buttonLabel) == "" {
		buttonLabel = "Select"
	}
	payload := interactivePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
	}
	payload.Interactive.Type = "list"
	payload.Interactive.Body.Text = bodyText
	payload.Interactive.Action.Button = buttonLabel
	for _, s := range sections {
		ws := wireSection{Title: s.Title}
		for _, r := range s.Rows {
			ws.Rows = append(ws.Rows, wireRow{ID: r.ID, Title: r.Title, Description: r.Description})
		}
		payload.Interactive.Action.Sections = append(payload.Interactive.Action.Sections, ws)
	}
	return c.send(ctx, "whatsapp.send_list", payload)
}

func (c *Client) send(ctx context.Context, spanName string, payload any) (*SendResult, error) {
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("whatsapp: failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("whatsapp: failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("whatsapp: request failed: %w", err)
			c.logger.Warn("whatsapp send attempt failed", "attempt", attempt, "error", err)
			continue
		}

		result, retryable, err := decodeSendResponse(resp)
		if err == nil {
			span.SetAttributes(attribute.String("whatsapp.message_id", result.MessageID))
			return result, nil
		}
		lastErr = err
		span.RecordError(err)
		if !retryable {
			return nil, err
		}
		c.logger.Warn("whatsapp send attempt rejected", "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

// decodeSendResponse reads the API response. retryable covers 429 and 5xx.
func decodeSendResponse(resp *http.Response) (*SendResult, bool, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("whatsapp: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("whatsapp: api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded sendResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false, fmt.Errorf("whatsapp: failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if decoded.Error != nil {
			return nil, false, fmt.Errorf("whatsapp: api error %d (%s): %s", decoded.Error.Code, decoded.Error.Type, decoded.Error.Message)
		}
		return nil, false, fmt.Errorf("whatsapp: api returned status %d", resp.StatusCode)
	}
	if len(decoded.Messages) == 0 {
		return nil, false, errors.New("whatsapp: response contained no message id")
	}
	return &SendResult{MessageID: decoded.Messages[0].ID}, false, nil
}
