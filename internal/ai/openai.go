package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIChatMsg      `json:"messages"`
	Temperature    float32              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = taskType // openai embeddings have no task type distinction
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	reqBody := openAIEmbedRequest{Model: model, Input: text}
	body, err := p.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, err
	}
	var out openAIEmbedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode embeddings: %v", apperr.ErrTransientProvider, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: response has no embeddings", apperr.ErrTransientProvider)
	}
	return out.Data[0].Embedding, nil
}

func (p *openAIProvider) GenerateStructured(ctx context.Context, model string, req *GenerateRequest) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	messages := make([]openAIChatMsg, 0, 3)
	if req.SystemInstruction != "" {
		messages = append(messages, openAIChatMsg{Role: "system", Content: req.SystemInstruction})
	}
	prompt := req.Prompt
	if req.Context != "" {
		prompt = prompt + "\n\nEVIDENCE:\n" + req.Context
	}
	messages = append(messages, openAIChatMsg{Role: "user", Content: prompt})
	reqBody := openAIChatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    req.Config.Temperature,
		MaxTokens:      req.Config.MaxOutputTokens,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}
	body, err := p.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}
	var out openAIChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode chat response: %v", apperr.ErrTransientProvider, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", apperr.ErrTransientProvider)
	}
	return json.RawMessage(strings.TrimSpace(out.Choices[0].Message.Content)), nil
}

func (p *openAIProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientProvider, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", apperr.ErrRateLimited, strings.TrimSpace(string(body)))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %s: %s", apperr.ErrTransientProvider, resp.Status, strings.TrimSpace(string(body)))
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("openai request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
	}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
