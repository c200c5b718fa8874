// Package ai is the completion-provider boundary: one vision call that turns
// an image into persona text, one chat call that completes an assembled
// conversation, and the vision-model catalog. Everything upstream of this
// package is provider-neutral.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"personachat/internal/config"
	"personachat/internal/models"
)

// ErrUpstreamGeneration covers every way the provider can fail to produce
// text: transport errors, non-success statuses, and empty completions.
var ErrUpstreamGeneration = errors.New("upstream generation failed")

// Generation parameters are fixed constants, never user-controlled.
const (
	genTemperature  = 0.8
	maxOutputTokens = 500
)

const personaSystemPrompt = "You are a creative AI that invents unique and engaging personas for whatever appears in an image."

const personaInstruction = `Look at this image and invent a fictional persona for the subject you see.

Respond with ONLY a JSON object, no other text, in exactly this format:
{
  "name": "a short memorable name",
  "description": "2-3 sentences describing who this persona is",
  "personality": "2-3 sentences describing how they think and behave",
  "background": "2-3 sentences of backstory",
  "traits": ["exactly", "five", "short", "trait", "words"]
}`

// Service holds the constructed chat models for the active provider.
type Service struct {
	visionModel model.ToolCallingChatModel
	chatModel   model.ToolCallingChatModel
}

// New builds the vision and chat models from the active provider entry.
// When no separate vision model is configured the chat model serves both
// roles, which matches deployments where a single multimodal model handles
// everything.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	providerName := cfg.BasicConfig.Provider
	provCfg, ok := cfg.Providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", providerName)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", providerName)
	}

	chatModel, err := newChatModel(ctx, providerName, provCfg, provCfg.Model)
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	visionModel := chatModel
	if provCfg.VisionModel != "" && provCfg.VisionModel != provCfg.Model {
		visionModel, err = newChatModel(ctx, providerName, provCfg, provCfg.VisionModel)
		if err != nil {
			return nil, fmt.Errorf("init vision model: %w", err)
		}
	}

	return &Service{visionModel: visionModel, chatModel: chatModel}, nil
}

func newChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig, modelName string) (model.ToolCallingChatModel, error) {
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: maxOutputTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// DescribePersona sends the image with the fixed persona instruction to the
// vision model and returns the raw response text. Validation of that text is
// the caller's job.
func (s *Service) DescribePersona(ctx context.Context, img models.ImagePayload) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data))
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: personaSystemPrompt,
		},
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type: schema.ChatMessagePartTypeText,
					Text: personaInstruction,
				},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:      dataURL,
						MIMEType: img.MIME,
					},
				},
			},
		},
	}
	return s.generate(ctx, s.visionModel, messages)
}

// Complete runs an assembled conversation through the chat model and returns
// the response text.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	return s.generate(ctx, s.chatModel, messages)
}

func (s *Service) generate(ctx context.Context, chatModel model.ToolCallingChatModel, messages []*schema.Message) (string, error) {
	resp, err := chatModel.Generate(ctx, messages,
		model.WithTemperature(genTemperature),
		model.WithMaxTokens(maxOutputTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty completion content", ErrUpstreamGeneration)
	}
	return resp.Content, nil
}
