package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
)

// textModel is a single prompt/response language model
type textModel interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// AIService estimates meal carbohydrates with Gemini, falling back to OpenAI
type AIService struct {
	models       []textModel
	geminiClient *genai.Client
}

type carbEstimate struct {
	FoodItems  []string `json:"food_items"`
	Carbs      float64  `json:"carbs"`
	Confidence string   `json:"confidence"`
}

// NewAIService creates the clients for every configured provider. It
// returns nil when no provider has an API key.
func NewAIService(ctx context.Context, cfg config.AIConfig) (*AIService, error) {
	s := &AIService{}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		s.models = append(s.models, &geminiModel{client: client, model: cfg.GeminiModel})
	}
	if cfg.OpenAIAPIKey != "" {
		s.models = append(s.models, &openaiModel{client: openai.NewClient(cfg.OpenAIAPIKey), model: cfg.OpenAIModel})
	}

	if len(s.models) == 0 {
		return nil, nil
	}
	return s, nil
}

// Close releases the Gemini client
func (s *AIService) Close() error {
	if s == nil || s.geminiClient == nil {
		return nil
	}
	return s.geminiClient.Close()
}

// EstimateCarbs returns the estimated grams of carbohydrate in a free-text
// meal description.
func (s *AIService) EstimateCarbs(ctx context.Context, food string) (float64, error) {
	food = strings.TrimSpace(food)
	if food == "" {
		return 0, errors.NewValidationError("food description is empty")
	}

	prompt := fmt.Sprintf(`You are a certified diabetes educator specializing in nutrition analysis.
Estimate the total carbohydrate content in grams of this meal, assuming standard Indian household portions unless amounts are given:

%s

CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a valid JSON object
- Do not include any explanatory text before or after the JSON
- The JSON must have these exact fields:
  {
    "food_items": ["item1", "item2"],
    "carbs": 123.45,
    "confidence": "low|medium|high"
  }`, food)

	var lastErr error
	for _, m := range s.models {
		text, err := m.Complete(ctx, prompt)
		if err == nil {
			var est carbEstimate
			est, err = parseCarbEstimate(text)
			if err == nil {
				logger.Debug("Estimated carbs", "provider", m.Name(), "carbs", est.Carbs, "confidence", est.Confidence)
				return est.Carbs, nil
			}
		}
		logger.Warn("Carb estimation provider failed", "provider", m.Name(), "error", err)
		lastErr = errors.NewExternalAPIError(err, m.Name())
	}
	if lastErr == nil {
		lastErr = errors.New(errors.ErrorTypeExternal, "NO_AI_PROVIDER", "no AI provider configured")
	}
	return 0, lastErr
}

func parseCarbEstimate(text string) (carbEstimate, error) {
	var est carbEstimate
	jsonStr := extractJSON(text)
	if jsonStr == "" {
		return est, fmt.Errorf("no valid JSON found in response")
	}
	if err := json.Unmarshal([]byte(jsonStr), &est); err != nil {
		return est, fmt.Errorf("failed to parse response: %w", err)
	}
	if est.Carbs < 0 {
		return est, fmt.Errorf("negative carb estimate %v", est.Carbs)
	}
	return est, nil
}

type geminiModel struct {
	client *genai.Client
	model  string
}

func (m *geminiModel) Name() string { return "gemini" }

func (m *geminiModel) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.GenerativeModel(m.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

type openaiModel struct {
	client *openai.Client
	model  string
}

func (m *openaiModel) Name() string { return "openai" }

func (m *openaiModel) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: m.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON attempts to extract a valid JSON object from the given string.
// It handles cases where the JSON is wrapped in code blocks (```json ... ```) or other text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
