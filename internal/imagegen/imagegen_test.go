package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotBody generationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %q, want /images/generations", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer img-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"b64_json": "Zmlyc3Q="},
				{"b64_json": "c2Vjb25k"},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "img-key", nil)
	images, err := g.Generate(context.Background(), Request{
		Prompt: "a lighthouse at dusk",
		Model:  "dall-e-3",
		N:      2,
		Size:   "1024x1024",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if gotBody.Prompt != "a lighthouse at dusk" {
		t.Errorf("prompt = %q", gotBody.Prompt)
	}
	if gotBody.ResponseFormat != "b64_json" {
		t.Errorf("response_format = %q, want b64_json", gotBody.ResponseFormat)
	}
	if gotBody.Model != "dall-e-3" || gotBody.N != 2 || gotBody.Size != "1024x1024" {
		t.Errorf("request options not forwarded: %+v", gotBody)
	}

	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].B64 != "Zmlyc3Q=" || images[1].B64 != "c2Vjb25k" {
		t.Errorf("unexpected payloads: %+v", images)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"content policy"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "img-key", nil)
	_, err := g.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "content policy") {
		t.Errorf("error %q should carry status and body", err)
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "img-key", nil)
	if _, err := g.Generate(ctx, Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
