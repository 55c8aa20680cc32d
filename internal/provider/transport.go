package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// GroqChatURL is the default remote endpoint.
const GroqChatURL = "https://api.groq.com/openai/v1/chat/completions"

// DefaultOllamaURL is the default local generate endpoint.
const DefaultOllamaURL = "http://localhost:11434/api/generate"

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 512

// ChatTransport speaks the OpenAI-compatible chat-completions API
// (Groq, OpenAI, vLLM, llama.cpp server).
type ChatTransport struct {
	httpClient *http.Client
}

// NewChatTransport creates a chat transport. A zero timeout defaults to 60s.
func NewChatTransport(timeout time.Duration) *ChatTransport {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ChatTransport{httpClient: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Send posts a single user message and returns the first choice's content.
func (t *ChatTransport) Send(ctx context.Context, endpoint, model, secret, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	body, err := doRequest(t.httpClient, req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// OllamaTransport speaks Ollama's non-streaming /api/generate.
type OllamaTransport struct {
	httpClient *http.Client
}

// NewOllamaTransport creates an Ollama transport. A zero timeout defaults to 120s.
func NewOllamaTransport(timeout time.Duration) *OllamaTransport {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaTransport{httpClient: &http.Client{Timeout: timeout}}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Send runs one generate call. The secret is ignored.
func (t *OllamaTransport) Send(ctx context.Context, endpoint, model, _ string, prompt string) (string, error) {
	reqBody, err := json.Marshal(ollamaRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doRequest(t.httpClient, req)
	if err != nil {
		return "", err
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", ErrMalformedResponse, parsed.Error)
	}
	return parsed.Response, nil
}

// doRequest executes req and returns the body of a 2xx response.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	return body, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
