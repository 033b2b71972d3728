// Package gemini implements the intake collaborator interfaces on the
// Gemini API. It is the default provider.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/core/providers/prompts"
)

const (
	// DefaultModel handles interactive extraction and response generation.
	DefaultModel = "gemini-2.0-flash-lite"
	// DefaultBatchModel handles the end-of-conversation record extraction.
	DefaultBatchModel = "gemini-2.0-flash"
)

// Config configures the Gemini provider.
type Config struct {
	APIKey            string
	Model             string
	BatchModel        string
	ResponseMaxTokens int

	// HTTPClient and BaseURL override transport details (for testing or
	// proxying).
	HTTPClient *http.Client
	BaseURL    string
}

// Provider calls Gemini for extraction, response generation, and batch
// record extraction.
type Provider struct {
	client     *genai.Client
	model      string
	batchModel string
	maxTokens  int
}

// New creates a Gemini provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	applyDefaults(&cfg)

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{
		client:     client,
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
		cfg.BatchModel = DefaultBatchModel
	}
	if cfg.ResponseMaxTokens <= 0 {
		cfg.ResponseMaxTokens = prompts.DefaultResponseMaxTokens
	}
}

// Extract pulls section fields out of one patient utterance.
func (p *Provider) Extract(ctx context.Context, text string, section intake.Section) (intake.FieldMap, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](prompts.ExtractionTemperature),
		ResponseMIMEType: "application/json",
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompts.Extraction(section, text)), config)
	if err != nil {
		return nil, fmt.Errorf("gemini: extract: %w", err)
	}
	return prompts.ParseFieldMap(resp.Text())
}

// Respond generates the next agent utterance.
func (p *Provider) Respond(ctx context.Context, userText string, section intake.Section, record intake.Record, history []intake.Turn) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](prompts.ResponseTemperature),
		MaxOutputTokens:   int32(p.maxTokens),
		SystemInstruction: genai.NewContentFromText(prompts.System(section, record), genai.RoleUser),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, respondContents(userText, history), config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate response: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return reply, nil
}

// ExtractRecord runs the batch extraction over a finished transcript using
// the larger batch model. An empty transcript short-circuits to an empty
// record without a model call.
func (p *Provider) ExtractRecord(ctx context.Context, turns []intake.Turn) (*intake.Record, error) {
	if len(turns) == 0 {
		return intake.NewRecord("", time.Now().UTC()), nil
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](prompts.ExtractionTemperature),
		MaxOutputTokens: int32(prompts.RecordExtractionMaxTokens),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.batchModel, genai.Text(prompts.RecordExtraction(turns)), config)
	if err != nil {
		return nil, fmt.Errorf("gemini: extract record: %w", err)
	}
	return prompts.ParseRecord(resp.Text())
}

// respondContents assembles the conversation contents: recent history in
// order, then the current patient message.
func respondContents(userText string, history []intake.Turn) []*genai.Content {
	msgs := prompts.History(history)
	contents := make([]*genai.Content, 0, len(msgs)+1)
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == prompts.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))
	return contents
}
