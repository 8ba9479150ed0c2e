package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
)

const (
	ModelPro       = "gemini-2.5-pro"
	ModelFlash     = "gemini-2.5-flash"
	ModelFlashLite = "gemini-2.5-flash-lite"
)

var AllowedModels = []string{ModelPro, ModelFlash, ModelFlashLite}

func IsAllowedModel(model string) bool {
	for _, m := range AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// ChatModel sends one user turn on top of an earlier conversation and returns
// the reply text.
type ChatModel interface {
	Generate(ctx context.Context, model string, history []models.Turn, turn models.Turn) (string, error)
}

type GenerationOptions struct {
	SystemInstruction string
	Temperature       float32
	MaxOutputTokens   int32
	SearchTool        bool
}

type geminiService struct {
	client  *genai.Client
	options GenerationOptions
	logger  logger.ILogger
}

// NewGeminiClient builds the client shared by the chat model and the file store.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

func NewGeminiService(client *genai.Client, options GenerationOptions, log logger.ILogger) ChatModel {
	return &geminiService{
		client:  client,
		options: options,
		logger:  log,
	}
}

// Generate implements ChatModel.
func (g *geminiService) Generate(ctx context.Context, model string, history []models.Turn, turn models.Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		if c := turnToContent(t); c != nil {
			contents = append(contents, c)
		}
	}
	current := turnToContent(turn)
	if current == nil {
		return "", fmt.Errorf("empty turn")
	}
	contents = append(contents, current)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.config())
	if err != nil {
		g.logger.Error("gemini", "generate content failed", map[string]interface{}{
			"model": model,
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := ""
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			reason = string(resp.Candidates[0].FinishReason)
		}
		g.logger.Warn("gemini", "no text content in response", map[string]interface{}{
			"model":         model,
			"finish_reason": reason,
		})
		return "", fmt.Errorf("no text content in response")
	}

	g.logger.Debug("gemini", "response received", map[string]interface{}{
		"model": model,
		"chars": len(text),
	})

	return text, nil
}

func (g *geminiService) config() *genai.GenerateContentConfig {
	temperature := g.options.Temperature

	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  g.options.MaxOutputTokens,
		ResponseMIMEType: "text/plain",
		ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)},
	}
	if g.options.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.options.SystemInstruction, genai.RoleUser)
	}
	if g.options.SearchTool {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

func turnToContent(t models.Turn) *genai.Content {
	parts := make([]*genai.Part, 0, len(t.Texts)+len(t.Files))
	for _, text := range t.Texts {
		if text != "" {
			parts = append(parts, genai.NewPartFromText(text))
		}
	}
	for _, f := range t.Files {
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
	}
	if len(parts) == 0 {
		return nil
	}

	var role genai.Role = genai.RoleUser
	if t.Role == models.RoleAssistant {
		role = genai.RoleModel
	}
	return genai.NewContentFromParts(parts, role)
}

type retryingChatModel struct {
	next        ChatModel
	maxAttempts int
	logger      logger.ILogger
}

// WithRetry wraps a ChatModel so failed calls are retried up to maxAttempts
// times in total. Context cancellation stops the loop.
func WithRetry(next ChatModel, maxAttempts int, log logger.ILogger) ChatModel {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryingChatModel{next: next, maxAttempts: maxAttempts, logger: log}
}

func (r *retryingChatModel) Generate(ctx context.Context, model string, history []models.Turn, turn models.Turn) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.next.Generate(ctx, model, history, turn)
		if err == nil {
			return result, nil
		}

		lastErr = err

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if attempt < r.maxAttempts {
			r.logger.Warn("gemini", "attempt failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
		}
	}

	if r.maxAttempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("failed after %d attempts: %w", r.maxAttempts, lastErr)
}
