// Package review generates AI feedback on a room's code buffer. It is an
// optional feature: without an API key the reviewer is disabled and the
// server answers 501 for review requests.
package review

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"coderoom/internal/language"
)

// Action names a kind of review.
type Action string

const (
	ActionAnalyze  Action = "analyze"
	ActionRefactor Action = "refactor"
	ActionComment  Action = "comment"
)

// Reviewer sends code to an OpenAI-compatible endpoint and returns the
// model's answer verbatim.
type Reviewer struct {
	client *openai.Client
	model  string
}

// New creates a Reviewer. baseURL may be empty for the default OpenAI
// endpoint.
func New(baseURL, apiKey, model string) *Reviewer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Reviewer{client: &client, model: model}
}

// Review runs one review action over a code buffer.
func (r *Reviewer) Review(ctx context.Context, action Action, code string, lang language.Language) (string, error) {
	prompt, err := buildPrompt(action, code, lang)
	if err != nil {
		return "", err
	}

	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("review completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

func buildPrompt(action Action, code string, lang language.Language) (string, error) {
	switch action {
	case ActionAnalyze:
		return fmt.Sprintf("You are an expert code reviewer. Analyze the following %s code snippet. Cover correctness, suggestions for readability and performance, and how production-ready it is, using a markdown heading per area.\n\n```%s\n%s\n```", lang, lang, code), nil
	case ActionRefactor:
		return fmt.Sprintf("You are an expert software engineer. Refactor the following %s code snippet to improve its quality, readability, and performance. Provide ONLY the refactored code inside a single markdown code block.\n\n```%s\n%s\n```", lang, lang, code), nil
	case ActionComment:
		return fmt.Sprintf("You are an expert software engineer. Add clear, concise comments to the following %s code snippet, explaining the why rather than the what. Provide ONLY the commented code inside a single markdown code block.\n\n```%s\n%s\n```", lang, lang, code), nil
	default:
		return "", fmt.Errorf("unknown review action: %s", action)
	}
}
