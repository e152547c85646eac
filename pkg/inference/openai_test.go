package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxCompletionTokens int64   `json:"max_completion_tokens"`
	Temperature         float64 `json:"temperature"`
}

func chatStub(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("failed to decode chat request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIInferencer_Infer(t *testing.T) {
	var seen chatRequest
	srv := chatStub(t, "a summary", &seen)

	inf := NewOpenAIInferencer("", "gemma3:12b")
	inf.ChangeBaseURL(srv.URL)

	out, err := inf.Infer(context.Background(), nil, "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if out != "a summary" {
		t.Errorf("out = %q", out)
	}

	if seen.Model != "gemma3:12b" {
		t.Errorf("model = %q", seen.Model)
	}
	if len(seen.Messages) != 2 {
		t.Fatalf("messages = %+v", seen.Messages)
	}
	if seen.Messages[0].Role != "system" || seen.Messages[0].Content != "system prompt" {
		t.Errorf("system message = %+v", seen.Messages[0])
	}
	if seen.Messages[1].Role != "user" || seen.Messages[1].Content != "user prompt" {
		t.Errorf("user message = %+v", seen.Messages[1])
	}
	if seen.Temperature != 0.7 {
		t.Errorf("temperature = %f, want default 0.7", seen.Temperature)
	}
	if seen.MaxCompletionTokens != 4096 {
		t.Errorf("max tokens = %d, want default 4096", seen.MaxCompletionTokens)
	}
}

func TestOpenAIInferencer_Edit(t *testing.T) {
	var seen chatRequest
	srv := chatStub(t, "a revision", &seen)

	inf := NewOpenAIInferencer("", "gemma3:12b")
	inf.ChangeBaseURL(srv.URL)

	user := "a summary in need of light correction"
	out, err := inf.Edit(context.Background(), nil, "fix typos", user)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if out != "a revision" {
		t.Errorf("out = %q", out)
	}

	if seen.Temperature != 0.25 {
		t.Errorf("temperature = %f, want 0.25 for edits", seen.Temperature)
	}
	if want := int64(len(user) * 2); seen.MaxCompletionTokens != want {
		t.Errorf("max tokens = %d, want %d", seen.MaxCompletionTokens, want)
	}
}

func TestOpenAIInferencer_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	inf := NewOpenAIInferencer("", "gemma3:12b")
	inf.ChangeBaseURL(srv.URL)

	if _, err := inf.Infer(context.Background(), nil, "system", "user"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIInferencer_SetModel(t *testing.T) {
	var seen chatRequest
	srv := chatStub(t, "ok", &seen)

	inf := NewOpenAIInferencer("", "gemma3:12b")
	inf.ChangeBaseURL(srv.URL)
	inf.SetModel("llama3.1:8b")

	if _, err := inf.Infer(context.Background(), nil, "system", "user"); err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if seen.Model != "llama3.1:8b" {
		t.Errorf("model = %q", seen.Model)
	}
}
