package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultModel = openai.ChatModelGPT5Mini2025_08_07

	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	systemPrompt = `You are a news assistant inside a Telegram chat.

The user's message may end with a feed context block that starts with
"=== Feed context" and ends with "=== End of feed context ===". It lists
recent articles from the user's subscribed feeds with title, feed, age, link
and a short preview. A line in square brackets starting with "[Feed context:"
is a notice about why no articles were attached.

Rules:
- Answer the user's request using the articles when they are relevant.
- Mention article titles and keep links for the articles you refer to.
- Never invent articles that are not in the context block.
- If a notice says no articles were found, say so briefly and help anyway.
- Plain text, no Markdown tables.
- Reply in the language of the user's own text.`
)

// OpenAIResponder calls OpenAI's Responses API.
type OpenAIResponder struct {
	client openai.Client
	model  string
}

func NewOpenAIResponder(apiKey, model string, opts ...option.RequestOption) *OpenAIResponder {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	return &OpenAIResponder{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:  model,
	}
}

func (r *OpenAIResponder) Respond(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := r.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           r.model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(message),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		answer := strings.TrimSpace(resp.OutputText())
		if answer == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return answer, nil
	}
}
