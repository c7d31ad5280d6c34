package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Dimensions int    `json:"dimensions"`
	// AzureAPIVersion switches to the azure deployment url layout and
	// api-key header. base_url is then the resource endpoint.
	AzureAPIVersion string `json:"azure_api_version"`
}

type openAIClient struct {
	name         string
	apiKey       string
	baseURL      string
	azureVersion string
	headers      map[string]string
}

func newOpenAIClient(name string, cfg *openAIConfig) openAIClient {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return openAIClient{
		name:         name,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(baseURL, "/"),
		azureVersion: strings.TrimSpace(cfg.AzureAPIVersion),
	}
}

func (c *openAIClient) endpoint(model string, op string) string {
	if c.azureVersion == "" {
		return c.baseURL + "/" + op
	}
	return c.baseURL + "/openai/deployments/" + url.PathEscape(model) + "/" + op +
		"?api-version=" + url.QueryEscape(c.azureVersion)
}

func (c *openAIClient) post(ctx context.Context, endpoint string, in interface{}, out interface{}) error {
	if c.apiKey == "" {
		return ErrUnavailable
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if c.azureVersion != "" {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s request failed: %s: %s", c.name, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type openAIChatRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages []openAIChatMsg `json:"messages"`
	Stream   bool            `json:"stream"`
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
	Model      string `json:"model,omitempty"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *openAIClient) chat(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	messages := make([]openAIChatMsg, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openAIChatMsg{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openAIChatMsg{Role: "user", Content: userPrompt})
	reqBody := openAIChatRequest{Messages: messages}
	if c.azureVersion == "" {
		reqBody.Model = model
	}
	var out openAIChatResponse
	if err := c.post(ctx, c.endpoint(model, "chat/completions"), reqBody, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", c.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type openAIProvider struct {
	openAIClient
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	return p.chat(ctx, model, systemPrompt, userPrompt)
}

type openAIEmbedProvider struct {
	openAIClient
	dimensions int
}

func (p *openAIEmbedProvider) Name() string {
	return p.name
}

// Embed ignores taskType, the openai embedding api has no equivalent.
func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	reqBody := openAIEmbedRequest{Input: text, Dimensions: p.dimensions}
	if p.azureVersion == "" {
		reqBody.Model = model
	}
	var out openAIEmbedResponse
	if err := p.post(ctx, p.endpoint(model, "embeddings"), reqBody, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func providerName(cfg *openAIConfig) string {
	if strings.TrimSpace(cfg.AzureAPIVersion) != "" {
		return "azure"
	}
	return "openai"
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &openAIProvider{openAIClient: newOpenAIClient(providerName(cfg), cfg)}, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &openAIEmbedProvider{
		openAIClient: newOpenAIClient(providerName(cfg), cfg),
		dimensions:   cfg.Dimensions,
	}, nil
}

func createAzureFactory(args interface{}) (IAIProvider, error) {
	p, err := createOpenAIFactory(args)
	if err != nil {
		return nil, err
	}
	if p.(*openAIProvider).azureVersion == "" {
		return nil, fmt.Errorf("azure provider requires azure_api_version")
	}
	return p, nil
}

func createAzureEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := createOpenAIEmbedFactory(args)
	if err != nil {
		return nil, err
	}
	if p.(*openAIEmbedProvider).azureVersion == "" {
		return nil, fmt.Errorf("azure provider requires azure_api_version")
	}
	return p, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
	Register("azure", createAzureFactory)
	RegisterEmbed("azure", createAzureEmbedFactory)
}
