package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModels are tried in order until one answers.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	models   []string
	generate generateFunc
	logger   *zap.Logger
}

// NewGemini creates a client for apiKey. An empty model list means DefaultModels.
func NewGemini(ctx context.Context, apiKey string, models []string, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGemini(client.Models.GenerateContent, models, logger), nil
}

func newGemini(fn generateFunc, models []string, logger *zap.Logger) *Gemini {
	if len(models) == 0 {
		models = DefaultModels
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{models: models, generate: fn, logger: logger}
}

// Models returns the fallback order.
func (g *Gemini) Models() []string { return g.models }

func (g *Gemini) Generate(ctx context.Context, req Request) (Reply, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.Role(genai.RoleModel)
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.Role(genai.RoleUser))
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var errs []error
	for _, model := range g.models {
		resp, err := g.generate(ctx, model, contents, config)
		if err != nil {
			if ctx.Err() != nil {
				return Reply{}, ctx.Err()
			}
			g.logger.Warn("model failed, trying next", zap.String("model", model), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}
		text := ""
		if resp != nil {
			text = resp.Text()
		}
		if strings.TrimSpace(text) == "" {
			errs = append(errs, fmt.Errorf("%s: %w", model, ErrEmptyReply))
			continue
		}
		g.logger.Debug("model answered", zap.String("model", model), zap.Int("chars", len(text)))
		return Reply{Text: text, Model: model}, nil
	}
	return Reply{}, fmt.Errorf("all models failed: %w", errors.Join(errs...))
}
