package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible API. Some vendor gateways require
// extra headers on every request; they are applied verbatim.
type Client struct {
	baseURL      string
	apiKey       string
	extraHeaders map[string]string

	stdModel      string
	calcModel     string
	fallbackModel string
	embedModel    string

	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BaseURL       string
	APIKey        string
	ExtraHeaders  map[string]string
	StdModel      string
	CalcModel     string
	FallbackModel string
	EmbedModel    string
	Timeout       time.Duration
}

func New(opts Options, executor *resilience.Executor) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		extraHeaders:  opts.ExtraHeaders,
		stdModel:      opts.StdModel,
		calcModel:     opts.CalcModel,
		fallbackModel: opts.FallbackModel,
		embedModel:    opts.EmbedModel,
		httpClient:    &http.Client{Timeout: timeout},
		executor:      executor,
	}
}

func (c *Client) modelFor(pipeline domain.Pipeline) string {
	if pipeline == domain.PipelineCalc {
		return c.calcModel
	}
	return c.stdModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Answers must stay grounded in the supplied evidence, so sampling is off.
const answerTemperature = 0.0

func (c *Client) chatCompletion(ctx context.Context, model, prompt string, format *responseFormat) (string, error) {
	req := chatRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    answerTemperature,
		ResponseFormat: format,
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/chat/completions", req, &resp, "chat"); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// EnsureCalcModel probes the strong calc model once at startup and swaps in
// the fallback when the vendor does not serve it. The probe failing is not
// fatal; the service starts either way.
func (c *Client) EnsureCalcModel(ctx context.Context) string {
	if c.calcModel == "" || c.fallbackModel == "" {
		return c.calcModel
	}
	if err := c.getJSON(ctx, "/models/"+c.calcModel, nil, "model probe"); err != nil {
		c.calcModel = c.fallbackModel
	}
	return c.calcModel
}

// Generator adapts the client to the answer-generation port.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, pipeline domain.Pipeline, prompt string) (string, error) {
	model := g.client.modelFor(pipeline)

	var answer string
	err := g.client.executor.Execute(ctx, "llm_generate", func(ctx context.Context) error {
		var genErr error
		answer, genErr = g.client.chatCompletion(ctx, model, prompt, nil)
		return genErr
	}, classifyError)
	return answer, wrapTemporaryIfNeeded("generate", err)
}

func (g *Generator) GenerateStream(ctx context.Context, pipeline domain.Pipeline, prompt string, onDelta func(string) error) error {
	model := g.client.modelFor(pipeline)

	err := g.client.executor.Execute(ctx, "llm_generate", func(ctx context.Context) error {
		return g.client.streamChatCompletion(ctx, model, prompt, onDelta)
	}, classifyError)
	return wrapTemporaryIfNeeded("generate stream", err)
}

func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := g.client.executor.Execute(ctx, "llm_generate_json", func(ctx context.Context) error {
		var genErr error
		answer, genErr = g.client.chatCompletion(ctx, g.client.stdModel, prompt, &responseFormat{Type: "json_object"})
		return genErr
	}, classifyError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate json", err)
	}
	return extractJSON(answer), nil
}

// Embedder adapts the client to the embedding port.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	err := e.client.executor.Execute(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/embeddings", embedRequest{Model: e.client.embedModel, Input: texts}, &resp, "embed")
	}, classifyError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// extractJSON trims code fences and surrounding prose, keeping the outermost
// JSON value. Models wrap JSON in markdown often enough to make this cheap
// cleanup necessary.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(raw, "]"); end > arrStart {
			return raw[arrStart : end+1]
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(raw, "}"); end > objStart {
			return raw[objStart : end+1]
		}
	}
	return raw
}
