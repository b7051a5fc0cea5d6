package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mvolkov/fleetsense/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Text: "Все метрики в норме"}
	resp, err := mock.Generate(context.Background(), GenerateRequest{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "Все метрики в норме" {
		t.Errorf("unexpected text: %q", resp.Text)
	}
}

func TestOllamaGenerate(t *testing.T) {
	var pulls, generates atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/pull":
			pulls.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			generates.Add(1)
			var req ollamaGenerateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad generate body: %v", err)
			}
			if req.Model != "test-model" {
				t.Errorf("model = %q", req.Model)
			}
			if req.Options["num_predict"] != float64(128) {
				t.Errorf("num_predict = %v", req.Options["num_predict"])
			}
			json.NewEncoder(w).Encode(ollamaGenerateResponse{
				Response:        "сервер перегружен, проверьте процессы",
				Done:            true,
				PromptEvalCount: 20,
				EvalCount:       15,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, WithOllamaModel("test-model"))

	for i := 0; i < 3; i++ {
		resp, err := p.Generate(context.Background(), GenerateRequest{Prompt: "анализ", MaxTokens: 128})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if resp.Text != "сервер перегружен, проверьте процессы" {
			t.Errorf("unexpected text: %q", resp.Text)
		}
		if resp.Usage.TotalTokens != 35 {
			t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
		}
	}

	if pulls.Load() != 1 {
		t.Errorf("model pulled %d times, want exactly once", pulls.Load())
	}
	if generates.Load() != 3 {
		t.Errorf("generate called %d times, want 3", generates.Load())
	}
}

func TestOllamaLoadFailureIsRuntimeUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, WithOllamaModel("missing"))
	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if !errors.HasCode(err, errors.CodeRuntimeUnavailable) {
		t.Errorf("expected RUNTIME_UNAVAILABLE, got %v", err)
	}

	// The failed load is cached; no second pull attempt.
	_, err2 := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if !errors.HasCode(err2, errors.CodeRuntimeUnavailable) {
		t.Errorf("expected cached load failure, got %v", err2)
	}
}

func TestOllamaUnreachableRuntime(t *testing.T) {
	p := NewOllama("http://127.0.0.1:1")
	err := p.Load(context.Background())
	if !errors.HasCode(err, errors.CodeRuntimeUnavailable) {
		t.Errorf("expected RUNTIME_UNAVAILABLE, got %v", err)
	}
}
