// Package llm is the client for the external inference endpoints: chat
// completions, embeddings, and input safety classification. The wire format
// is OpenAI-compatible JSON over HTTP.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Message is one chat turn. Content is either a plain string or, for vision
// prompts, a slice of ContentPart values.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference, typically a data URL of rasterized
// document pages.
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage builds a plain text message.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// SafetyResult is the verdict of the input safety classifier.
type SafetyResult struct {
	IsSafe     bool     `json:"is_safe"`
	Categories []string `json:"categories"`
}

// Config holds the endpoint and model configuration for one inference tier.
type Config struct {
	Endpoint       string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	SafetyModel    string
	Timeout        time.Duration
}

// Client talks to one inference endpoint. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client for the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// ---------------------------------------------------------------------------
// process-wide client cache
// ---------------------------------------------------------------------------

var (
	cacheMu     sync.Mutex
	clientCache = map[string]*Client{}
)

// Cached returns the process-wide client for (tier, endpoint), creating it on
// first use. Clients live for the life of the process.
func Cached(tier string, cfg Config) *Client {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := tier + "|" + cfg.Endpoint
	if c, ok := clientCache[key]; ok {
		return c
	}
	c := NewClient(cfg)
	clientCache[key] = c
	return c
}

// ---------------------------------------------------------------------------
// operations
// ---------------------------------------------------------------------------

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GetCompletion sends a chat request and returns the first choice's content.
func (c *Client) GetCompletion(ctx context.Context, messages []Message) (string, error) {
	var resp chatResponse
	err := c.post(ctx, "/v1/chat/completions", chatRequest{
		Model:    c.cfg.ChatModel,
		Messages: messages,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// GetEmbeddings returns one embedding vector per input string.
func (c *Client) GetEmbeddings(ctx context.Context, inputs []string) ([][]float64, error) {
	var resp embeddingsResponse
	err := c.post(ctx, "/v1/embeddings", embeddingsRequest{
		Model: c.cfg.EmbeddingModel,
		Input: inputs,
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CheckInput classifies user input for safety. Transport errors fail open:
// the caller gets is_safe=true so that a down classifier never blocks the
// product surface.
func (c *Client) CheckInput(ctx context.Context, text string) SafetyResult {
	req := chatRequest{
		Model: c.cfg.SafetyModel,
		Messages: []Message{
			TextMessage("user", text),
		},
	}
	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return SafetyResult{IsSafe: true}
	}
	if len(resp.Choices) == 0 {
		return SafetyResult{IsSafe: true}
	}

	var verdict SafetyResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		return SafetyResult{IsSafe: true}
	}
	return verdict
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}
