// Package oracle queries an LLM for ground-truth outputs. When a sampled
// execution has no externally supplied expected output, the oracle's answer
// stands in as the expected side of the comparison.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"loopai/internal/config"
	"loopai/internal/logging"
	"loopai/internal/model"
)

const systemPrompt = "You answer with the exact expected output for the given task input, " +
	"as a single JSON document. No explanations, no markdown fences."

// chatCompleter is the slice of the OpenAI client the oracle uses; tests
// substitute fakes.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Oracle produces expected outputs for task inputs via chat completion.
type Oracle struct {
	client  chatCompleter
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an oracle from configuration.
func New(cfg config.OracleConfig, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Oracle{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// ExpectedOutput asks the oracle for the ground-truth output of one input.
// The answer must parse as a single JSON document; anything else is an
// error, not a partial answer.
func (o *Oracle) ExpectedOutput(ctx context.Context, task *model.Task, input model.Document) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0, // deterministic ground truth
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(task, input)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oracle query: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle query: empty response")
	}

	answer := stripFences(resp.Choices[0].Message.Content)
	var out any
	if err := json.Unmarshal([]byte(answer), &out); err != nil {
		return nil, fmt.Errorf("oracle answer is not a JSON document: %w", err)
	}

	o.logger.DebugContext(ctx, "oracle answered",
		"task", task.ID, "latency", time.Since(start),
		"tokens", resp.Usage.TotalTokens)
	return out, nil
}

func buildPrompt(task *model.Task, input model.Document) string {
	var b strings.Builder
	b.WriteString(task.Description)
	b.WriteString("\n\n")
	if len(task.Examples) > 0 {
		b.WriteString("Examples:\n")
		for _, ex := range task.Examples {
			in, _ := json.Marshal(ex.Input)
			out, _ := json.Marshal(ex.Output)
			fmt.Fprintf(&b, "Input: %s -> Output: %s\n", in, out)
		}
		b.WriteString("\n")
	}
	in, _ := json.Marshal(input)
	fmt.Fprintf(&b, "Input: %s\nOutput:", in)
	return b.String()
}

// stripFences removes a markdown code fence if the model wrapped its answer
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
