// Package gemini calls the generative-AI text endpoint and parses its
// loosely structured answers.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/apperr"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// SupportedModels is the allowlist of models a request may select.
var SupportedModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// IsSupportedModel reports whether model is on the allowlist.
func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Client calls the generateContent endpoint.
type Client struct {
	apiKey  string
	client  *resty.Client
	baseURL string
	sleep   func(time.Duration)
}

// NewClient creates a Gemini client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		client:  resty.New().SetTimeout(60 * time.Second),
		baseURL: defaultBaseURL,
		sleep:   time.Sleep,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const maxRetries = 2

// GenerateContent sends prompt to the given model and returns the raw
// text of the first candidate. Server-side failures (5xx) and remote
// rate limits (429) are retried up to twice with exponential backoff
// (1s, 2s); any other non-2xx status fails immediately.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.8,
			MaxOutputTokens: 1536,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			logrus.Debugf("Retrying Gemini call in %v (attempt %d)", delay, attempt+1)
			c.sleep(delay)
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", c.apiKey).
			SetBody(body).
			Post(endpoint)
		if err != nil {
			lastErr = err
			continue
		}

		status := resp.StatusCode()
		if status >= 500 || status == 429 {
			lastErr = fmt.Errorf("gemini returned HTTP %d", status)
			continue
		}
		if resp.IsError() {
			return "", apperr.Upstream("Gemini API error", fmt.Sprintf("HTTP %d", status))
		}

		var parsed generateResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return "", apperr.Wrap(apperr.Upstream("Gemini returned an unreadable response", err.Error()), err)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return "", apperr.Upstream("Gemini returned no candidates", "")
		}
		return parsed.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", apperr.Wrap(apperr.Upstream("Gemini API error after retries", lastErr.Error()), lastErr)
}
