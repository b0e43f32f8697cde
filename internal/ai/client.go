// Package ai talks to the Azure OpenAI chat completions API and builds the
// prompts used for companion dialogue and mission generation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultAPIVersion = "2024-06-01"

var (
	ErrDisabled        = errors.New("ai: client not configured")
	ErrContentFiltered = errors.New("ai: completion blocked by content filter")
	ErrEmptyCompletion = errors.New("ai: empty completion")
)

// UpstreamError is a non-2xx answer from the API after retries.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai: upstream %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Config struct {
	Endpoint     string
	APIKey       string
	Deployment   string
	APIVersion   string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Options override the client defaults for a single call.
type Options struct {
	MaxTokens      int
	Temperature    *float64
	ResponseFormat *ResponseFormat
}

type Completion struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

type chatRequest struct {
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	cfg  Config
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 5 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetHeader("api-key", cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Client{cfg: cfg, http: rc}
}

// Enabled reports whether the client has enough configuration to call out.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Endpoint != "" && c.cfg.APIKey != "" && c.cfg.Deployment != ""
}

func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	req := chatRequest{
		Messages:       messages,
		MaxTokens:      c.cfg.MaxTokens,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: opts.ResponseFormat,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("api-version", c.cfg.APIVersion).
		SetBody(req).
		SetResult(&chatResponse{}).
		SetError(&errorEnvelope{}).
		Post("/openai/deployments/" + url.PathEscape(c.cfg.Deployment) + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("ai: chat request: %w", err)
	}

	if resp.IsError() {
		upstream := &UpstreamError{StatusCode: resp.StatusCode(), Message: resp.Status()}
		if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Message != "" {
			upstream.Code = env.Error.Code
			upstream.Message = env.Error.Message
		}
		if upstream.Code == "content_filter" {
			return nil, fmt.Errorf("%w: %s", ErrContentFiltered, upstream.Message)
		}
		return nil, upstream
	}

	out, ok := resp.Result().(*chatResponse)
	if !ok || len(out.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, ErrContentFiltered
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, ErrEmptyCompletion
	}

	log.WithFields(log.Fields{
		"deployment":        c.cfg.Deployment,
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
		"attempts":          resp.Request.Attempt,
	}).Debugf("ai chat completed in %s", time.Since(start))

	return &Completion{
		Content:          content,
		FinishReason:     choice.FinishReason,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}
