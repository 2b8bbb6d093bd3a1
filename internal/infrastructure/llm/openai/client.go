// Package openai provides the embedding and answer-generation clients
// backed by the OpenAI REST API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	apiKey      string
	chatModel   string
	embedModel  string
	temperature float64
	maxTokens   int
	transport   *transport
	executor    *resilience.Executor
}

type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Executor    *resilience.Executor
}

func New(baseURL, apiKey, chatModel, embedModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		chatModel:   chatModel,
		embedModel:  embedModel,
		temperature: options.Temperature,
		maxTokens:   maxTokens,
		transport:   newTransport(timeout),
		executor:    options.Executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.client.post(ctx, "/v1/embeddings", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: %d inputs, %d embeddings", len(texts), len(response.Data))
	}

	// The API documents response order matching input order; trust the
	// index field instead.
	out := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: empty result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	return g.client.chat(ctx, researchSystemPrompt, buildAnswerPrompt(question, results))
}

func (g *Generator) GenerateSourceAnalysis(ctx context.Context, question string, result domain.SearchResult) (string, error) {
	return g.client.chat(ctx, researchSystemPrompt, buildSourceAnalysisPrompt(question, result))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	request := map[string]any{
		"model": c.chatModel,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	var response struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", request, &response, "chat"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices in response")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any, operation string) error {
	call := func(ctx context.Context) error {
		return c.transport.postJSON(ctx, c.baseURL+path, c.apiKey, payload, out, operation)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "openai."+operation, call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded("openai "+operation, err)
}
