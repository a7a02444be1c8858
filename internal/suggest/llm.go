package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"inspiro/internal/config"
	"inspiro/internal/logging"
	"inspiro/internal/util"
)

const polishPrompt = `You edit social media captions so they read as written by a real person.
Keep the meaning, names and facts. No links, no more than two hashtags, no sales language.
Reply with the caption only, at most 280 characters.`

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Polisher optionally upgrades a heuristic rewrite with an LLM.
type Polisher struct {
	chat  chatCompleter
	model string
}

// NewPolisher returns nil when the LLM provider is not configured; a nil
// Polisher passes drafts through unchanged.
func NewPolisher(cfg config.LLMConfig) *Polisher {
	if strings.ToLower(cfg.Provider) != "openai" || cfg.APIKey == "" {
		return nil
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Polisher{chat: client.Chat.Completions, model: cfg.Model}
}

// Enabled reports whether Polish calls out to an LLM.
func (p *Polisher) Enabled() bool { return p != nil && p.chat != nil }

// Polish asks the LLM to improve draft, a rewrite of caption. On any failure
// it returns draft along with the error.
func (p *Polisher) Polish(ctx context.Context, caption, draft string) (string, error) {
	if !p.Enabled() {
		return draft, nil
	}
	model := openai.ChatModel(p.model)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	resp, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(polishPrompt),
			openai.UserMessage(fmt.Sprintf("Original: %s\nDraft: %s", caption, draft)),
		}),
		Model:       openai.F(model),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		logging.Warn("llm_polish_error", map[string]any{"error": err.Error()})
		return draft, err
	}
	if len(resp.Choices) == 0 {
		return draft, errors.New("llm returned no choices")
	}
	text := util.NormalizeWhitespace(resp.Choices[0].Message.Content)
	if text == "" {
		return draft, errors.New("llm returned empty caption")
	}
	return text, nil
}
