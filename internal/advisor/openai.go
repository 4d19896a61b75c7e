package advisor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vaskular/vaskular-backend/internal/config"
	"github.com/vaskular/vaskular-backend/internal/metrics"
	"github.com/vaskular/vaskular-backend/internal/model"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = openai.GPT3Dot5Turbo

	// DefaultTimeout bounds one completion round trip.
	DefaultTimeout = 30 * time.Second
)

// OpenAI is an Advisor backed by an OpenAI-compatible chat completion API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI builds an advisor from the application config.  OpenAIBaseURL
// overrides the API root, which tests use to point at a local server.
func NewOpenAI(cfg config.Config) *OpenAI {
	occ := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		occ.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	modelName := cfg.OpenAIModel
	if modelName == "" {
		modelName = DefaultModel
	}
	timeout := cfg.AdvisorTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(occ),
		model:   modelName,
		timeout: timeout,
	}
}

// Advise sends the system framing and the rendered prompt as a single-turn
// request and returns the first choice's content unchanged.
func (a *OpenAI) Advise(ctx context.Context, rec *model.ScoreRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: RenderPrompt(rec)},
		},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	metrics.ObserveAdvisorLatency(time.Since(start))
	if err != nil {
		log.Printf("advisor: completion for user %q failed: %v", rec.UserID, err)
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrExternalService)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("%w: first choice has empty content", ErrExternalService)
	}
	return content, nil
}
