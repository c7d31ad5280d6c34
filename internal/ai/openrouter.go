package ai

import (
	"context"
	"strings"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// openrouterProvider speaks the openai chat completions dialect with a
// couple of attribution headers.
type openrouterProvider struct {
	openAIClient
}

func (p *openrouterProvider) Name() string {
	return "openrouter"
}

func (p *openrouterProvider) Generate(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	return p.chat(ctx, model, systemPrompt, userPrompt)
}

func createOpenRouterFactory(args interface{}) (IAIProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	client := newOpenAIClient("openrouter", &openAIConfig{APIKey: cfg.APIKey, BaseURL: baseURL})
	client.headers = map[string]string{}
	if v := strings.TrimSpace(cfg.HTTPReferer); v != "" {
		client.headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.XTitle); v != "" {
		client.headers["X-Title"] = v
	}
	return &openrouterProvider{openAIClient: client}, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
