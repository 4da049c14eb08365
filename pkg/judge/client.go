package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mchmarny/xray/pkg/net"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.1
	DefaultTimeout     = 60 * time.Second

	completionsPath = "/chat/completions"
)

// ErrNoCredential is returned by NewClient when no API key is configured.
var ErrNoCredential = errors.New("judge API key not set")

// Config is resolved once at startup and not changed afterwards.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultConfig returns the OpenAI endpoint defaults without a credential.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Client judges evidence with an OpenAI compatible chat-completions API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates cfg and returns a client authenticated with its API key.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoCredential
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		http: net.GetOAuthClient(ctx, cfg.APIKey, cfg.Timeout),
	}, nil
}

// Config returns the resolved configuration.
func (c *Client) Config() Config { return c.cfg }

// Judge sends the deduplicated, capped excerpts in one request. There are
// no retries.
func (c *Client) Judge(ctx context.Context, label string, excerpts []string) (*Verdict, error) {
	req := newRequest(c.cfg, label, Excerpts(excerpts))

	var resp completionResponse
	if err := net.PostJSON(ctx, c.http, c.cfg.BaseURL+completionsPath, req, &resp); err != nil {
		if errors.Is(err, net.ErrDecode) {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrParse)
	}

	v, err := ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	slog.Debug("dimension judged", "dimension", label, "multiplier", v.Multiplier)
	return v, nil
}
