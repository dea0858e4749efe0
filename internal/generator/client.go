package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"echotype/internal/models"
)

// Request describes one example-generation call for a vocabulary item.
// Existing carries every sentence previously generated for the item so
// the model can be told not to repeat them.
type Request struct {
	Word     string
	Meaning  string
	Kind     models.ItemKind
	Existing []string
	Topic    string // optional group hint
}

// Generator produces a fresh usage example for an item. Implementations
// call an LLM or return canned entries (for tests).
type Generator interface {
	GenerateExample(ctx context.Context, req Request) (models.ExampleEntry, error)
}

// ErrParse is returned when the upstream reply contains no parseable
// example payload, or when the request times out. Either way the caller
// shows an inline message and the session stays usable.
var ErrParse = errors.New("no parseable example in generator response")

// UpstreamKind classifies non-2xx generator responses.
type UpstreamKind string

const (
	UpstreamAuth      UpstreamKind = "auth"
	UpstreamRateLimit UpstreamKind = "rate_limit"
	UpstreamServer    UpstreamKind = "server"
)

// UpstreamError is returned for non-2xx generator responses, sub-typed
// so each class gets a distinct user-presentable message.
type UpstreamError struct {
	Kind   UpstreamKind
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generator returned status %d (%s)", e.Status, e.Kind)
}

// Message returns the text shown inline next to the generation control.
func (e *UpstreamError) Message() string {
	switch e.Kind {
	case UpstreamAuth:
		return "The example service rejected our credentials. Check the API key."
	case UpstreamRateLimit:
		return "The example service is rate limiting us. Try again in a moment."
	default:
		return "The example service is having trouble. Try again later."
	}
}

// Client calls an OpenAI-compatible chat-completions endpoint
// (OpenAI, Ollama, LM Studio, vLLM, etc.).
type Client struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

var _ Generator = (*Client)(nil)

// NewClient creates a generator client. timeout bounds the whole
// round trip; on expiry the call fails like a parse error rather than
// hanging the caller.
func NewClient(url, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// GenerateExample asks the model for one new usage example, instructing
// it to avoid every sentence in req.Existing. The reply is free-form
// text containing one JSON object, which is located by brace matching.
func (c *Client) GenerateExample(ctx context.Context, req Request) (models.ExampleEntry, error) {
	content, err := c.chat(ctx, buildPrompt(req))
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return models.ExampleEntry{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ExampleEntry{}, fmt.Errorf("generation timed out: %w", ErrParse)
		}
		return models.ExampleEntry{}, fmt.Errorf("generator request failed: %w", err)
	}

	payload := extractJSON(content)
	if payload == "" {
		return models.ExampleEntry{}, ErrParse
	}

	var parsed struct {
		English    string `json:"english"`
		Vietnamese string `json:"vietnamese"`
		Context    string `json:"context"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return models.ExampleEntry{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if strings.TrimSpace(parsed.English) == "" {
		return models.ExampleEntry{}, ErrParse
	}

	return models.ExampleEntry{
		ItemKey:    strings.ToLower(strings.TrimSpace(req.Word)),
		English:    strings.TrimSpace(parsed.English),
		Vietnamese: strings.TrimSpace(parsed.Vietnamese),
		Context:    strings.TrimSpace(parsed.Context),
		GroupKey:   req.Topic,
		CreatedAt:  time.Now(),
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chat sends one request and returns the raw text of the first choice.
func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/chat/completions", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrParse)
	}

	return parsed.Choices[0].Message.Content, nil
}

func classifyStatus(status int) UpstreamKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return UpstreamAuth
	case http.StatusTooManyRequests:
		return UpstreamRateLimit
	default:
		return UpstreamServer
	}
}

// buildPrompt keeps the instruction short and ends with the JSON schema
// so it is the last thing the model sees.
func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write one natural English example sentence using the %s %q.\n", req.Kind, req.Word)
	if req.Meaning != "" {
		fmt.Fprintf(&b, "Its meaning: %s.\n", req.Meaning)
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic context: %s.\n", req.Topic)
	}

	if len(req.Existing) > 0 {
		b.WriteString("\nDo NOT reuse or rephrase any of these previously generated sentences:\n")
		for i, s := range req.Existing {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}

	b.WriteString("\nKeep the sentence simple enough for an intermediate learner.\n")
	b.WriteString("Respond with ONLY this JSON - no explanation, no markdown:\n")
	b.WriteString(`{"english": "...", "vietnamese": "...", "context": "one short usage note (optional)"}`)

	return b.String()
}

// extractJSON finds the outermost JSON object in a string, skipping
// braces inside quoted strings.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
