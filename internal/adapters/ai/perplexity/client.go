// Package perplexity calls the Perplexity chat API to look up a beer's ABV
// by name and brewer. Replies are returned raw; numeric parsing happens in
// the enrichment pipeline
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"
	defaultTimeout = 30 * time.Second
)

const lookupPrompt = "You answer questions about beers. Reply with only the ABV " +
	"as a number, for example 5.5. If you are not certain, reply unknown."

// Options configures the Client
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is a minimal Perplexity chat-completions client
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// New creates a Client. APIKey must be non-empty
func New(o Options) *Client {
	if o.APIKey == "" {
		panic("perplexity: APIKey required")
	}
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("perplexity"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LookupABV asks the model for the ABV of a beer. A 429 from the API comes
// back as a too-many-requests error whose message names the status, so
// callers can apply their longer retry delay
func (c *Client) LookupABV(ctx context.Context, name, brewer string) (string, error) {
	question := fmt.Sprintf("What is the ABV (alcohol by volume) of the beer %q", name)
	if brewer != "" {
		question += fmt.Sprintf(" by %q", brewer)
	}
	question += "? Reply with just the number."

	payload, err := json.Marshal(struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: lookupPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "perplexity marshal failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "perplexity new request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "perplexity call failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("perplexity close body failed")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "perplexity read body failed")
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("beer", name).
		Msg("perplexity response")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", perr.TooManyRequestsf("perplexity status 429 rate limited")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", perr.Upstreamf("perplexity status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "perplexity decode failed")
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", perr.Upstreamf("perplexity empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// IsRateLimited reports whether err represents an upstream 429
func IsRateLimited(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeTooManyRequests)
}
