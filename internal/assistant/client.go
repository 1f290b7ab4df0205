package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProviderName is recorded on every assistant message.
const ProviderName = "n8n"

var (
	ErrNotConfigured = errors.New("assistant: webhook not configured")
	ErrUpstream      = errors.New("assistant: upstream failure")
	ErrMalformed     = errors.New("assistant: malformed reply")
)

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Client posts turn and review payloads to the AI workflow webhook. It does
// not retry.
type Client struct {
	url        string
	secret     string
	httpClient *resty.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(cfg.URL),
		secret: strings.TrimSpace(cfg.Secret),
		httpClient: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "roleplay-training-backend/1.0"),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.url != "" && c.secret != ""
}

type Reply struct {
	AssistantMessage string
	// Debug is the optional debug object echoed by the workflow.
	Debug    json.RawMessage
	Duration time.Duration
}

type webhookReply struct {
	AssistantMessage json.RawMessage `json:"assistantMessage"`
	Debug            json.RawMessage `json:"debug"`
}

// Respond asks the workflow for the next assistant message.
func (c *Client) Respond(ctx context.Context, payload ConversationPayload) (Reply, error) {
	started := time.Now()

	body, err := c.post(ctx, payload)
	if err != nil {
		return Reply{}, err
	}

	var reply webhookReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: decode reply: %v", ErrMalformed, err)
	}

	var text string
	if err := json.Unmarshal(reply.AssistantMessage, &text); err != nil || text == "" {
		return Reply{}, fmt.Errorf("%w: assistantMessage is not a non-empty string", ErrMalformed)
	}

	out := Reply{AssistantMessage: text, Duration: time.Since(started)}
	if len(reply.Debug) > 0 && string(reply.Debug) != "null" {
		out.Debug = reply.Debug
	}
	return out, nil
}

// Evaluate asks the workflow for a review and returns the raw
// assistantMessage value, which is either a JSON object or a string holding one.
func (c *Client) Evaluate(ctx context.Context, payload ReviewPayload) (json.RawMessage, error) {
	body, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var reply webhookReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %v", ErrMalformed, err)
	}
	if len(reply.AssistantMessage) == 0 {
		return nil, fmt.Errorf("%w: assistantMessage missing", ErrMalformed)
	}
	return reply.AssistantMessage, nil
}

func (c *Client) post(ctx context.Context, payload interface{}) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.secret).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	return resp.Body(), nil
}
