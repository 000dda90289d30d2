// Package models adapts OpenAI-compatible chat endpoints to the ADK LLM interface.
package models

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Known OpenAI-compatible providers and their base URLs.
var providerBaseURLs = map[string]string{
	"openai":     "",
	"grok":       "https://api.x.ai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// Options selects the provider and model.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider default.
	BaseURL string
}

// openaiModel wraps an OpenAI-compatible chat client.
type openaiModel struct {
	client             *openai.Client
	name               string
	versionHeaderValue string
}

// New creates a model.LLM for an OpenAI-compatible provider.
func New(ctx context.Context, opts Options) (model.LLM, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}
	baseURL, ok := providerBaseURLs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	// OpenRouter ids carry the upstream vendor, e.g. "openai/gpt-4o".
	if provider == "openrouter" && !strings.Contains(opts.Model, "/") {
		return nil, fmt.Errorf("openrouter model %q must be <vendor>/<model>, e.g. openai/%s", opts.Model, opts.Model)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(clientOpts...)

	// Create header value once, when the model is created
	headerValue := fmt.Sprintf("%s-go/%s go/%s",
		provider, "1.0.0", strings.TrimPrefix(runtime.Version(), "go"))

	return &openaiModel{
		name:               opts.Model,
		client:             &client,
		versionHeaderValue: headerValue,
	}, nil
}

func (m *openaiModel) Name() string {
	return m.name
}

// GenerateContent performs one non-streaming completion; stream is ignored.
func (m *openaiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	m.maybeAppendUserContent(req)

	if req.Config == nil {
		req.Config = &genai.GenerateContentConfig{}
	}
	if req.Config.HTTPOptions == nil {
		req.Config.HTTPOptions = &genai.HTTPOptions{}
	}
	if req.Config.HTTPOptions.Headers == nil {
		req.Config.HTTPOptions.Headers = make(http.Header)
	}
	m.addHeaders(req.Config.HTTPOptions.Headers)

	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *openaiModel) addHeaders(headers http.Header) {
	headers.Set("user-agent", m.versionHeaderValue)
}

func (m *openaiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildOpenAIParams(req, m.name)

	resp, err := m.client.Chat.Completions.New(ctx, *params,
		option.WithHeader("user-agent", m.versionHeaderValue))
	if err != nil {
		slog.Error("failed to call llm API", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("failed to call llm API: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return &model.LLMResponse{}, nil
	}

	message := resp.Choices[0].Message
	content := &genai.Content{
		Role:  "model",
		Parts: []*genai.Part{},
	}
	if message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{
			Text: message.Content,
		})
	}

	return &model.LLMResponse{
		Content:      content,
		TurnComplete: true,
	}, nil
}

func (m *openaiModel) maybeAppendUserContent(req *model.LLMRequest) {
	if len(req.Contents) == 0 {
		req.Contents = append(req.Contents, genai.NewContentFromText("Handle the requests as specified in the System Instruction.", "user"))
	}

	if last := req.Contents[len(req.Contents)-1]; last != nil && last.Role != "user" && last.Role != "system" {
		req.Contents = append(req.Contents, genai.NewContentFromText("Continue processing previous requests as instructed.", "user"))
	}
}
