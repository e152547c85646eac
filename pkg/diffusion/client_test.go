package diffusion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"comicinsights/pkg/schema"
)

func TestClient_Generate(t *testing.T) {
	png := []byte("\x89PNG fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}

		var req schema.Txt2ImgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Prompt != "a knight" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.SamplerName != "DPM++ 2M SDE" {
			t.Errorf("sampler = %q", req.SamplerName)
		}
		if req.Steps != 23 {
			t.Errorf("steps = %d", req.Steps)
		}

		json.NewEncoder(w).Encode(schema.Txt2ImgResponse{
			Images: []string{base64.StdEncoding.EncodeToString(png)},
		})
	}))
	defer srv.Close()

	payload := schema.DefaultTxt2ImgRequest()
	payload.SetPrompts("a knight", "blurry")

	images, err := NewClient(srv.URL).Generate(context.Background(), payload)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1", len(images))
	}
	if string(images[0]) != string(png) {
		t.Error("decoded image bytes do not match")
	}
}

func TestClient_GenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), schema.DefaultTxt2ImgRequest())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if !strings.Contains(genErr.Reason, "500") || !strings.Contains(genErr.Reason, "CUDA out of memory") {
		t.Errorf("reason should carry the status and body snippet: %q", genErr.Reason)
	}
}

func TestClient_GenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(schema.Txt2ImgResponse{})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), schema.DefaultTxt2ImgRequest())
	if err == nil {
		t.Fatal("expected error for empty images list")
	}
}

func TestClient_GenerateBadBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(schema.Txt2ImgResponse{Images: []string{"not base64!!!"}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), schema.DefaultTxt2ImgRequest())
	if err == nil {
		t.Fatal("expected error for undecodable image")
	}
}

func TestClient_GenerateContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Generate(ctx, schema.DefaultTxt2ImgRequest()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
