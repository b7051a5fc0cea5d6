// SPDX-License-Identifier: Apache-2.0

package hfapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/llm"
)

func TestGenerateWalksEndpointLadder(t *testing.T) {
	var calls []string

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "broken")
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "working")
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("missing bearer credential, got %q", auth)
		}
		w.Write([]byte(`[{"generated_text": "высокая нагрузка на CPU, рекомендуется оптимизация"}]`))
	}))
	defer working.Close()

	unreached := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "unreached")
		w.Write([]byte(`[{"generated_text": "should not get here"}]`))
	}))
	defer unreached.Close()

	c := New("test-key", WithEndpoints([]Endpoint{
		{Name: "Broken", URL: broken.URL, MaxTokens: 300},
		{Name: "Working", URL: working.URL, MaxTokens: 400},
		{Name: "Unreached", URL: unreached.URL, MaxTokens: 500},
	}))

	resp, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: "анализ метрик"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(resp.Text, "Working") {
		t.Errorf("response must name the winning model, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "высокая нагрузка") {
		t.Errorf("response lost the completion text: %q", resp.Text)
	}
	if len(calls) != 2 || calls[0] != "broken" || calls[1] != "working" {
		t.Errorf("ladder order violated: %v", calls)
	}
}

func TestGenerateExhaustedLadder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("key", WithEndpoints([]Endpoint{
		{Name: "A", URL: srv.URL, MaxTokens: 100},
		{Name: "B", URL: srv.URL, MaxTokens: 100},
	}))

	_, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: "x"})
	if !errors.HasCode(err, errors.CodeTransport) {
		t.Errorf("expected TRANSPORT_ERROR, got %v", err)
	}
}

func TestGeneratePromptTruncation(t *testing.T) {
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hostedRequest
		if err := jsonDecode(r, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotLen = len(req.Inputs)
		w.Write([]byte(`[{"generated_text": "ok response that is long enough"}]`))
	}))
	defer srv.Close()

	c := New("key",
		WithEndpoints([]Endpoint{{Name: "A", URL: srv.URL, MaxTokens: 100}}),
		WithPromptLimit(50))

	_, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: strings.Repeat("a", 500)})
	if err != nil {
		t.Fatal(err)
	}
	if gotLen != 50 {
		t.Errorf("prompt sent with %d bytes, want truncation to 50", gotLen)
	}
}

func TestGenerateWithoutCredential(t *testing.T) {
	c := New("")
	_, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: "x"})
	if !errors.HasCode(err, errors.CodeTransport) {
		t.Errorf("expected TRANSPORT_ERROR, got %v", err)
	}
}

func TestExtractTextShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"list shape", `[{"generated_text": "из списка"}]`, "из списка"},
		{"object generated_text", `{"generated_text": "из объекта"}`, "из объекта"},
		{"object text", `{"text": "альтернативный ключ"}`, "альтернативный ключ"},
		{"object output", `{"output": "третий ключ"}`, "третий ключ"},
		{"object response", `{"response": "четвертый ключ"}`, "четвертый ключ"},
		{"unknown non-meta key", `{"completion": "запасной вариант"}`, "запасной вариант"},
		{"bare string", `"просто строка"`, "просто строка"},
		{"raw body", `not json at all`, "not json at all"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractText([]byte(c.body)); got != c.want {
				t.Errorf("ExtractText(%s) = %q, want %q", c.body, got, c.want)
			}
		})
	}
}

func TestExtractTextSkipsMetaKeys(t *testing.T) {
	// error/warnings/status never carry the completion.
	got := ExtractText([]byte(`{"error": "rate limited", "generated_text": "настоящий ответ"}`))
	if got != "настоящий ответ" {
		t.Errorf("ExtractText = %q", got)
	}
	if got := ExtractText([]byte(`{"error": "only error"}`)); got != "" {
		t.Errorf("meta-only object must extract nothing, got %q", got)
	}
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
