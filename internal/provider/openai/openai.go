// Package openai provides the OpenAI API client used for content moderation
// and image generation.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"imagebot/internal/core"
	"imagebot/internal/pkg/apiclient"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI moderation and image endpoints.
type Client struct {
	client *apiclient.Client
	apiKey string
}

// New creates a new OpenAI client.
func New(apiKey string) *Client {
	c := &Client{apiKey: apiKey}
	c.client = apiclient.New(clientConfig(), c.setHeaders)
	return c
}

// NewWithHTTPClient creates a new OpenAI client with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{apiKey: apiKey}
	c.client = apiclient.NewWithHTTPClient(httpClient, clientConfig(), c.setHeaders)
	return c
}

func clientConfig() apiclient.Config {
	cfg := apiclient.DefaultConfig("openai", defaultBaseURL)
	// A rate-limited user is told to retry later; retrying here would add
	// more calls against an already throttled account first.
	cfg.RetryRateLimited = false
	return cfg
}

// SetBaseURL allows configuring a custom base URL (used in tests).
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

// setHeaders sets the required headers for OpenAI API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	// Forward request ID if present in context using OpenAI's X-Client-Request-Id
	// header. OpenAI requires ASCII-only characters and max 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's
// X-Client-Request-Id header: ASCII characters only, max 512 characters.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// moderationRequest is the JSON body for POST /moderations
type moderationRequest struct {
	Input string `json:"input"`
}

// moderationResponse is the relevant slice of the moderation result
type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// CheckModeration runs text through the moderation endpoint and reports
// whether it was flagged as violating the content policy.
func (c *Client) CheckModeration(ctx context.Context, text string) (bool, error) {
	var resp moderationResponse
	err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/moderations",
		Body:     moderationRequest{Input: text},
	}, &resp)
	if err != nil {
		return false, err
	}
	if len(resp.Results) == 0 {
		return false, core.NewProviderError("openai", http.StatusBadGateway, "moderation response contained no results", nil)
	}
	return resp.Results[0].Flagged, nil
}

// imageRequest is the JSON body for POST /images/generations
type imageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
	User   string `json:"user,omitempty"`
}

// imageResponse is the relevant slice of the generation result
type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage requests a single size×size image for prompt and returns its
// URL. user is the hashed requester identity, forwarded for provider-side
// abuse monitoring; never the raw platform id.
func (c *Client) GenerateImage(ctx context.Context, prompt string, size int, user string) (string, error) {
	var resp imageResponse
	err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/images/generations",
		Body: imageRequest{
			Prompt: prompt,
			N:      1,
			Size:   fmt.Sprintf("%dx%d", size, size),
			User:   user,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", core.NewProviderError("openai", http.StatusBadGateway, "image response contained no data", nil)
	}
	return resp.Data[0].URL, nil
}
