package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Message is a single turn in a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single inference call.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// Chatter generates chat completions.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	ChatJSON(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client talks to a local Ollama-compatible inference server.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

// NewClient builds a client from the LLM config section.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
	Options  Options   `json:"options"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Chat sends a chat completion request and returns the assistant content.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	return c.chat(ctx, messages, opts, "")
}

// ChatJSON is Chat with the server's JSON output mode enabled, for prompts
// that expect a machine-parseable reply.
func (c *Client) ChatJSON(ctx context.Context, messages []Message, opts Options) (string, error) {
	return c.chat(ctx, messages, opts, "json")
}

func (c *Client) chat(ctx context.Context, messages []Message, opts Options, format string) (string, error) {
	reqBody := chatRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   false,
		Format:   format,
		Options:  opts,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.ErrLLMUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errors.ErrLLMUnavailable(fmt.Errorf("inference server returned status %d", resp.StatusCode))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", errors.ErrLLMUnavailable(err)
	}
	if cr.Message.Content == "" {
		return "", errors.ErrLLMUnavailable(fmt.Errorf("empty response from inference server"))
	}
	return cr.Message.Content, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	b, err := json.Marshal(embedRequest{Model: c.embedModel, Prompt: text})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ErrLLMUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.ErrLLMUnavailable(fmt.Errorf("inference server returned status %d", resp.StatusCode))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, errors.ErrLLMUnavailable(err)
	}
	if len(er.Embedding) == 0 {
		return nil, errors.ErrLLMUnavailable(fmt.Errorf("empty embedding from inference server"))
	}
	return er.Embedding, nil
}

// Healthy checks that the inference server is reachable and serving models.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.ErrLLMUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.ErrLLMUnavailable(fmt.Errorf("inference server returned status %d", resp.StatusCode))
	}
	return nil
}
