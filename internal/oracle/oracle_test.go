package oracle

import (
	"context"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"loopai/internal/logging"
	"loopai/internal/model"
)

type fakeCompleter struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func testOracle(client chatCompleter) *Oracle {
	return &Oracle{client: client, model: "gpt-4o-mini", timeout: 5 * time.Second, logger: logging.Discard()}
}

func oracleTask() *model.Task {
	return &model.Task{
		ID:          "t1",
		Description: "sum the numbers",
		Examples: []model.ExamplePair{
			{Input: model.Document{"nums": []any{1.0, 2.0}}, Output: map[string]any{"total": 3.0}},
		},
	}
}

func TestExpectedOutput_ParsesAnswer(t *testing.T) {
	fake := &fakeCompleter{content: `{"total": 6}`}
	o := testOracle(fake)

	got, err := o.ExpectedOutput(context.Background(), oracleTask(), model.Document{"nums": []any{1.0, 2.0, 3.0}})
	if err != nil {
		t.Fatalf("ExpectedOutput: %v", err)
	}
	doc, ok := got.(map[string]any)
	if !ok || doc["total"] != 6.0 {
		t.Errorf("answer: %+v", got)
	}

	if fake.lastReq.Temperature != 0 {
		t.Error("ground truth queries must run at temperature 0")
	}
	if len(fake.lastReq.Messages) != 2 {
		t.Fatalf("messages: %d", len(fake.lastReq.Messages))
	}
	prompt := fake.lastReq.Messages[1].Content
	if prompt == "" || fake.lastReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("prompt shape: %+v", fake.lastReq.Messages)
	}
}

func TestExpectedOutput_StripsFences(t *testing.T) {
	fake := &fakeCompleter{content: "```json\n{\"total\": 6}\n```"}
	o := testOracle(fake)

	got, err := o.ExpectedOutput(context.Background(), oracleTask(), model.Document{})
	if err != nil {
		t.Fatalf("ExpectedOutput: %v", err)
	}
	if doc := got.(map[string]any); doc["total"] != 6.0 {
		t.Errorf("answer: %+v", got)
	}
}

func TestExpectedOutput_NonJSONAnswer(t *testing.T) {
	fake := &fakeCompleter{content: "the total is six"}
	o := testOracle(fake)

	if _, err := o.ExpectedOutput(context.Background(), oracleTask(), model.Document{}); err == nil {
		t.Fatal("prose answers must be rejected")
	}
}

func TestExpectedOutput_QueryError(t *testing.T) {
	fake := &fakeCompleter{err: fmt.Errorf("quota exceeded")}
	o := testOracle(fake)

	if _, err := o.ExpectedOutput(context.Background(), oracleTask(), model.Document{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpectedOutput_EmptyChoices(t *testing.T) {
	o := testOracle(&emptyCompleter{})
	if _, err := o.ExpectedOutput(context.Background(), oracleTask(), model.Document{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

type emptyCompleter struct{}

func (emptyCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, nil
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
