package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/utils"
)

// PromptMessage is one entry of an assembled, ordered prompt.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIClient is the upstream LLM boundary. Chat is the blocking call used by
// the enrichment pipeline; OpenChatStream hands the raw chunked SSE body to
// the relay, which owns the incremental parse. Retries are deliberately not
// done here: the request path surfaces failures to the client and the job
// queue re-runs failed enrichment.
type AIClient interface {
	Chat(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (string, error)
	OpenChatStream(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (io.ReadCloser, error)
	Embed(ctx context.Context, input string) ([]float32, error)
}

type openAIClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	// streamClient carries no overall timeout: a healthy stream may run
	// longer than any fixed deadline, and the relay's inactivity timer is
	// what bounds a stalled one.
	streamClient *http.Client
}

func NewOpenAIClient(log *logger.Logger) (AIClient, error) {
	serviceLog := log.With("service", "OpenAIClient")

	apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	embedModel := utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 180, log)

	return &openAIClient{
		log:          serviceLog,
		baseURL:      baseURL,
		apiKey:       apiKey,
		embedModel:   embedModel,
		httpClient:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		streamClient: &http.Client{},
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (c *openAIClient) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return fmt.Errorf("openai decode error: %w", uErr)
	}
	return nil
}

// ---- Chat completions ----

type chatCompletionsRequest struct {
	Model               string          `json:"model"`
	Messages            []PromptMessage `json:"messages"`
	Stream              bool            `json:"stream,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         float64         `json:"temperature,omitempty"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) Chat(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (string, error) {
	req := chatCompletionsRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
		Temperature:         0.2,
	}
	var resp chatCompletionsResponse
	if err := c.do(ctx, "POST", "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai response missing message content")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenChatStream issues a streaming chat completion and returns the response
// body unread. The caller owns parsing and must close the body.
func (c *openAIClient) OpenChatStream(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (io.ReadCloser, error) {
	reqBody := chatCompletionsRequest{
		Model:               model,
		Messages:            messages,
		Stream:              true,
		MaxCompletionTokens: maxTokens,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp.Body, nil
}

// ---- Embeddings ----

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAIClient) Embed(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, fmt.Errorf("empty embedding input")
	}
	req := embeddingsRequest{Model: c.embedModel, Input: []string{input}}
	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings response empty")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
