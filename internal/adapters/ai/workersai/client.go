// Package workersai calls a Workers AI text-generation endpoint to clean
// merchant beer descriptions. The reply is returned raw; validation happens
// in the cleanup pipeline
package workersai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
)

// cleanPrompt instructs the model to strip markup without rewriting content
const cleanPrompt = "Clean up the following beer description by removing HTML tags " +
	"and decoding HTML entities. Keep the original wording, numbers, and meaning " +
	"exactly as written. Do not add, remove, or rephrase content. " +
	"Return only the cleaned description."

const defaultTimeout = 30 * time.Second

// Options configures the Client
type Options struct {
	// URL is the full model run endpoint
	URL   string
	Token string
	// Timeout is the transport ceiling; callers bound individual calls
	// with their own context deadline
	Timeout time.Duration
}

// Client is a minimal Workers AI chat client
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// New creates a Client. URL must be non-empty
func New(o Options) *Client {
	if o.URL == "" {
		panic("workersai: URL required")
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("workersai"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Clean asks the model for a cleaned rendition of description
func (c *Client) Clean(ctx context.Context, description string) (string, error) {
	payload, err := json.Marshal(struct {
		Messages []chatMessage `json:"messages"`
	}{Messages: []chatMessage{
		{Role: "system", Content: cleanPrompt},
		{Role: "user", Content: description},
	}})
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "workersai marshal failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(payload))
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "workersai new request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "workersai call failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("workersai close body failed")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "workersai read body failed")
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("workersai response")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", perr.TooManyRequestsf("workersai status 429 rate limited")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", perr.Upstreamf("workersai status %d", resp.StatusCode)
	}

	// duck typed: gateways reply {response}, the REST API nests it under result
	var out struct {
		Response string `json:"response"`
		Result   struct {
			Response string `json:"response"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "workersai decode failed")
	}
	text := out.Response
	if text == "" {
		text = out.Result.Response
	}
	if text == "" {
		return "", perr.Upstreamf("workersai empty response")
	}
	return text, nil
}
