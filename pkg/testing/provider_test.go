// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/mvolkov/fleetsense/pkg/llm"
)

func TestScriptProviderOrder(t *testing.T) {
	p := NewScriptProvider().
		AddResponse("первый").
		AddErrorResponse(fmt.Errorf("boom")).
		AddResponse("третий")

	ctx := context.Background()

	resp, err := p.Generate(ctx, llm.GenerateRequest{Prompt: "a"})
	if err != nil || resp.Text != "первый" {
		t.Errorf("first = %v, %v", resp, err)
	}

	if _, err := p.Generate(ctx, llm.GenerateRequest{Prompt: "b"}); err == nil {
		t.Error("second response must fail")
	}

	resp, err = p.Generate(ctx, llm.GenerateRequest{Prompt: "c"})
	if err != nil || resp.Text != "третий" {
		t.Errorf("third = %v, %v", resp, err)
	}

	if p.CallCount() != 3 {
		t.Errorf("call count = %d, want 3", p.CallCount())
	}
}

func TestScriptProviderCapturesRequests(t *testing.T) {
	p := NewScriptProvider().AddResponse("ответ")

	p.Generate(context.Background(), llm.GenerateRequest{Prompt: "анализ", MaxTokens: 400})

	last, ok := p.LastRequest()
	if !ok || last.Prompt != "анализ" || last.MaxTokens != 400 {
		t.Errorf("captured request wrong: %+v ok=%v", last, ok)
	}
}

func TestScriptProviderDefaultError(t *testing.T) {
	p := NewScriptProvider().WithDefaultError(fmt.Errorf("script exhausted"))

	if _, err := p.Generate(context.Background(), llm.GenerateRequest{}); err == nil {
		t.Error("expected default error when script is empty")
	}
}

func TestScriptProviderCondition(t *testing.T) {
	p := NewScriptProvider().
		AddScriptedResponse(ScriptedResponse{
			Text:      "только для длинных промптов",
			Condition: func(req llm.GenerateRequest) bool { return len(req.Prompt) > 10 },
		}).
		AddResponse("запасной")

	resp, err := p.Generate(context.Background(), llm.GenerateRequest{Prompt: "короткий?"})
	if err != nil || resp.Text != "запасной" {
		t.Errorf("condition not skipped: %v, %v", resp, err)
	}
}

func TestScriptProviderReset(t *testing.T) {
	p := NewScriptProvider().AddResponse("снова")

	p.Generate(context.Background(), llm.GenerateRequest{})
	p.Reset()

	resp, err := p.Generate(context.Background(), llm.GenerateRequest{})
	if err != nil || resp.Text != "снова" {
		t.Errorf("reset did not rewind the script: %v, %v", resp, err)
	}
	if p.CallCount() != 1 {
		t.Errorf("call count after reset = %d, want 1", p.CallCount())
	}
}
