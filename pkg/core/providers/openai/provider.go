// Package openai implements the intake collaborator interfaces on the
// OpenAI chat completions API, as an alternative to the default Gemini
// provider.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/sashabaranov/go-openai"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/core/providers/prompts"
)

// DefaultModel handles all three call shapes unless overridden.
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI provider.
type Config struct {
	APIKey            string
	Model             string
	BatchModel        string
	ResponseMaxTokens int

	// BaseURL and HTTPClient override transport details (for testing or
	// proxying).
	BaseURL    string
	HTTPClient *http.Client
}

// Provider calls OpenAI for extraction, response generation, and batch
// record extraction.
type Provider struct {
	client     *oai.Client
	model      string
	batchModel string
	maxTokens  int
}

// New creates an OpenAI provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	applyDefaults(&cfg)

	clientCfg := oai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Provider{
		client:     oai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		batchModel: cfg.BatchModel,
		maxTokens:  cfg.ResponseMaxTokens,
	}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchModel == "" {
		cfg.BatchModel = cfg.Model
	}
	if cfg.ResponseMaxTokens <= 0 {
		cfg.ResponseMaxTokens = prompts.DefaultResponseMaxTokens
	}
}

// Extract pulls section fields out of one patient utterance.
func (p *Provider) Extract(ctx context.Context, text string, section intake.Section) (intake.FieldMap, error) {
	resp, err := p.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: p.model,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleUser, Content: prompts.Extraction(section, text)},
		},
		Temperature: prompts.ExtractionTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: extract: %w", err)
	}
	return prompts.ParseFieldMap(firstChoice(resp))
}

// Respond generates the next agent utterance.
func (p *Provider) Respond(ctx context.Context, userText string, section intake.Section, record intake.Record, history []intake.Turn) (string, error) {
	messages := []oai.ChatCompletionMessage{
		{Role: oai.ChatMessageRoleSystem, Content: prompts.System(section, record)},
	}
	for _, m := range prompts.History(history) {
		role := oai.ChatMessageRoleUser
		if m.Role == prompts.RoleAssistant {
			role = oai.ChatMessageRoleAssistant
		}
		messages = append(messages, oai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, oai.ChatCompletionMessage{Role: oai.ChatMessageRoleUser, Content: userText})

	resp, err := p.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: prompts.ResponseTemperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: generate response: %w", err)
	}
	reply := strings.TrimSpace(firstChoice(resp))
	if reply == "" {
		return "", fmt.Errorf("openai: empty response")
	}
	return reply, nil
}

// ExtractRecord runs the batch extraction over a finished transcript. An
// empty transcript short-circuits to an empty record without a model call.
func (p *Provider) ExtractRecord(ctx context.Context, turns []intake.Turn) (*intake.Record, error) {
	if len(turns) == 0 {
		return intake.NewRecord("", time.Now().UTC()), nil
	}
	resp, err := p.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: p.batchModel,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleUser, Content: prompts.RecordExtraction(turns)},
		},
		Temperature: prompts.ExtractionTemperature,
		MaxTokens:   prompts.RecordExtractionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: extract record: %w", err)
	}
	return prompts.ParseRecord(firstChoice(resp))
}

func firstChoice(resp oai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
