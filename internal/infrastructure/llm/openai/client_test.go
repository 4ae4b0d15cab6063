package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/infrastructure/resilience"
)

func passthroughExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{Enabled: false})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		ExtraHeaders:  map[string]string{"X-Vendor-Tag": "exam"},
		StdModel:      "std-model",
		CalcModel:     "calc-model",
		FallbackModel: "fallback-model",
		EmbedModel:    "embed-model",
	}, passthroughExecutor())
}

func TestGenerateSelectsModelByPipeline(t *testing.T) {
	var gotModel string
	var gotAuth, gotVendor string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotVendor = r.Header.Get("X-Vendor-Tag")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		if req.Temperature != 0 {
			t.Fatalf("temperature = %v, want 0", req.Temperature)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": " 答案：A "}}]}`)
	})
	gen := NewGenerator(client)

	answer, err := gen.Generate(context.Background(), domain.PipelineCalc, "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "答案：A" {
		t.Fatalf("answer = %q", answer)
	}
	if gotModel != "calc-model" {
		t.Fatalf("model = %s, want calc-model", gotModel)
	}
	if gotAuth != "Bearer test-key" || gotVendor != "exam" {
		t.Fatalf("headers auth=%q vendor=%q", gotAuth, gotVendor)
	}

	if _, err := gen.Generate(context.Background(), domain.PipelineStd, "prompt"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotModel != "std-model" {
		t.Fatalf("model = %s, want std-model", gotModel)
	}
}

func TestGenerateStreamOrderedDeltas(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Fatal("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"基金\"}}]}\n\n")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"是指\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})
	gen := NewGenerator(client)

	var got []string
	err := gen.GenerateStream(context.Background(), domain.PipelineStd, "prompt", func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if strings.Join(got, "") != "基金是指" {
		t.Fatalf("deltas = %v", got)
	}
}

func TestGenerateStreamDeltaErrorAborts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})
	gen := NewGenerator(client)

	calls := 0
	err := gen.GenerateStream(context.Background(), domain.PipelineStd, "prompt", func(string) error {
		calls++
		return fmt.Errorf("stop")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want abort after first delta", err, calls)
	}
}

func TestEnsureCalcModelFallsBack(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/calc-model" {
			http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	if got := client.EnsureCalcModel(context.Background()); got != "fallback-model" {
		t.Fatalf("calc model = %s, want fallback-model", got)
	}
	if client.modelFor(domain.PipelineCalc) != "fallback-model" {
		t.Fatal("fallback not applied to subsequent calls")
	}
}

func TestEnsureCalcModelKeepsAvailableModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "calc-model"}`)
	})

	if got := client.EnsureCalcModel(context.Background()); got != "calc-model" {
		t.Fatalf("calc model = %s, want calc-model", got)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"embedding": [0.1, 0.2]}]}`)
	})
	embedder := NewEmbedder(client)

	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "embed-model" || len(req.Input) != 1 {
			t.Fatalf("request = %+v", req)
		}
		fmt.Fprint(w, `{"data": [{"embedding": [0.5, 0.25]}]}`)
	})
	embedder := NewEmbedder(client)

	vec, err := embedder.EmbedQuery(context.Background(), "问题")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("vector = %v", vec)
	}
}

func TestGenerateJSONStripsFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Fatalf("response format = %+v", req.ResponseFormat)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "`+"```"+`json\n{\"verdict\": \"pass\"}\n`+"```"+`"}}]}`)
	})
	gen := NewGenerator(client)

	got, err := gen.GenerateJSON(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if got != `{"verdict": "pass"}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONArray(t *testing.T) {
	raw := "以下是结果：\n```json\n[{\"point\": \"a\"}]\n```"
	if got := extractJSON(raw); got != `[{"point": "a"}]` {
		t.Fatalf("got %q", got)
	}
}

func TestServerErrorWrappedTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	})
	gen := NewGenerator(client)

	_, err := gen.Generate(context.Background(), domain.PipelineStd, "prompt")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("err = %v, want temporary kind", err)
	}
}
