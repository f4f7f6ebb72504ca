package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resumecoach/internal/config"
	"resumecoach/internal/prompt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Fixed sampling parameters for every review.
const (
	Temperature float32 = 0.2
	MaxTokens           = 900
)

// ChatModel is the part of an eino chat model the analysis needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Analysis is the completion body returned for one prompt.
type Analysis struct {
	Content string
	Model   string
	Cached  bool
}

// Service sends review prompts to the configured remote model. It never
// retries and never falls back to another model.
type Service struct {
	chatModel ChatModel
	provider  string
	modelName string
	cache     Cache
	timeout   time.Duration
}

var chatModelFactory = newChatModel

// NewService builds the chat model for the configured provider and tier.
// cache may be nil.
func NewService(ctx context.Context, cfg *config.Config, cache Cache) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider := cfg.Analysis.Provider
	modelName := cfg.ModelName()
	chatModel, err := chatModelFactory(ctx, provider, cfg.Provider(), modelName)
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	svc := NewServiceWithModel(chatModel, provider, modelName, cache)
	svc.timeout = time.Duration(cfg.Analysis.RequestTimeoutSeconds) * time.Second
	return svc, nil
}

// NewServiceWithModel wraps an already constructed chat model.
func NewServiceWithModel(chatModel ChatModel, provider, modelName string, cache Cache) *Service {
	return &Service{
		chatModel: chatModel,
		provider:  provider,
		modelName: modelName,
		cache:     cache,
	}
}

func newChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig, modelName string) (ChatModel, error) {
	switch provider {
	case "groq", "openai":
		// groq speaks the openai wire format
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
			return nil, fmt.Errorf("new genai client: %w", err)
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
			MaxTokens: MaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// Model returns the model identifier used for completion calls.
func (s *Service) Model() string {
	return s.modelName
}

// Analyze sends the rendered review prompt and returns the completion body.
// Any transport or service failure is returned as a *ServiceError.
func (s *Service) Analyze(ctx context.Context, reviewPrompt string) (*Analysis, error) {
	key := cacheKey(s.modelName, reviewPrompt)
	if s.cache != nil {
		content, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("analysis cache read failed")
		case ok:
			log.Debug().Str("model", s.modelName).Msg("analysis served from cache")
			return &Analysis{Content: content, Model: s.modelName, Cached: true}, nil
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: prompt.SystemInstruction,
		},
		{
			Role:    schema.User,
			Content: reviewPrompt,
		},
	}
	start := time.Now()
	resp, err := s.chatModel.Generate(ctx, messages,
		model.WithModel(s.modelName),
		model.WithTemperature(Temperature),
		model.WithMaxTokens(MaxTokens),
	)
	if err != nil {
		return nil, s.serviceError(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, s.serviceError(ErrEmptyCompletion)
	}
	log.Info().
		Str("provider", s.provider).
		Str("model", s.modelName).
		Dur("elapsed", time.Since(start)).
		Int("prompt_chars", len(reviewPrompt)).
		Msg("analysis completed")

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			log.Warn().Err(err).Msg("analysis cache write failed")
		}
	}
	return &Analysis{Content: resp.Content, Model: s.modelName}, nil
}

func (s *Service) serviceError(err error) *ServiceError {
	return &ServiceError{Provider: s.provider, Model: s.modelName, Err: err}
}
