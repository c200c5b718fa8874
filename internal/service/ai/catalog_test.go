package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"personachat/internal/cache"
	"personachat/internal/config"
)

const catalogFixture = `{
  "data": [
    {
      "id": "acme/text-only",
      "name": "Text Only",
      "architecture": {"input_modalities": ["text"]},
      "pricing": {"prompt": "0", "completion": "0", "image": "0"}
    },
    {
      "id": "acme/vision-paid",
      "name": "Vision Paid",
      "description": "sees images, costs money",
      "context_length": 128000,
      "architecture": {"input_modalities": ["text", "image"]},
      "pricing": {"prompt": "0.000001", "completion": "0.000002", "image": "0.001"}
    },
    {
      "id": "acme/vision-free",
      "name": "Vision Free",
      "description": "sees images for nothing",
      "context_length": 32000,
      "architecture": {"input_modalities": ["text", "image"]},
      "pricing": {"prompt": "0", "completion": "0", "image": "0"}
    }
  ]
}`

func newCatalogServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogFixture))
	}))
}

func TestListVisionModelsFiltersAndSorts(t *testing.T) {
	var hits atomic.Int64
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	catalog := NewCatalog(config.ProviderConfig{BaseURL: srv.URL, APIKey: "test-key"}, cache.NewMemory(), time.Hour)

	infos, err := catalog.ListVisionModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 vision models, got %d: %+v", len(infos), infos)
	}
	if infos[0].ID != "acme/vision-free" || !infos[0].IsFree {
		t.Fatalf("expected free model first, got %+v", infos[0])
	}
	if infos[1].ID != "acme/vision-paid" || infos[1].IsFree {
		t.Fatalf("expected paid model second, got %+v", infos[1])
	}
}

func TestListVisionModelsUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	catalog := NewCatalog(config.ProviderConfig{BaseURL: srv.URL, APIKey: "test-key"}, cache.NewMemory(), time.Hour)

	ctx := context.Background()
	if _, err := catalog.ListVisionModels(ctx); err != nil {
		t.Fatalf("first list: %v", err)
	}
	if _, err := catalog.ListVisionModels(ctx); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", got)
	}
}

func TestListVisionModelsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	catalog := NewCatalog(config.ProviderConfig{BaseURL: srv.URL}, cache.NewMemory(), time.Hour)
	if _, err := catalog.ListVisionModels(context.Background()); err == nil {
		t.Fatal("expected error from failing upstream")
	}
}
