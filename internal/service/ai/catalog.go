package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"personachat/internal/cache"
	"personachat/internal/config"
)

const catalogCacheKey = "catalog:vision-models"

// ModelInfo describes one vision-capable model from the provider catalog.
type ModelInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	ContextLength int          `json:"context_length,omitempty"`
	IsFree        bool         `json:"is_free"`
	Pricing       ModelPricing `json:"pricing"`
}

// ModelPricing keeps the provider's string-encoded per-token prices.
type ModelPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Image      string `json:"image"`
}

// Catalog lists the provider's image-capable models, caching the filtered
// result so browsing the picker does not hammer the upstream endpoint.
type Catalog struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      cache.Store
	ttl        time.Duration
}

func NewCatalog(provCfg config.ProviderConfig, store cache.Store, ttl time.Duration) *Catalog {
	return &Catalog{
		baseURL:    strings.TrimRight(provCfg.BaseURL, "/"),
		apiKey:     provCfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		ttl:        ttl,
	}
}

type catalogResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
		Architecture  struct {
			InputModalities []string `json:"input_modalities"`
		} `json:"architecture"`
		Pricing ModelPricing `json:"pricing"`
	} `json:"data"`
}

// ListVisionModels returns models whose declared input modalities include
// images, free models first, then by name.
func (c *Catalog) ListVisionModels(ctx context.Context) ([]ModelInfo, error) {
	if cached, err := c.store.Get(ctx, catalogCacheKey); err == nil {
		var infos []ModelInfo
		decodeErr := json.Unmarshal([]byte(cached), &infos)
		if decodeErr == nil {
			return infos, nil
		}
		log.Warn("discarding undecodable catalog cache entry", "error", decodeErr)
	}

	infos, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(infos); err == nil {
		if err := c.store.Set(ctx, catalogCacheKey, string(encoded), c.ttl); err != nil {
			log.Warn("cache catalog", "error", err)
		}
	}
	return infos, nil
}

func (c *Catalog) fetch(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models endpoint returned %s", resp.Status)
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	infos := make([]ModelInfo, 0, len(payload.Data))
	for _, m := range payload.Data {
		if !supportsImages(m.Architecture.InputModalities) {
			continue
		}
		infos = append(infos, ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
			IsFree:        isFreePricing(m.Pricing),
			Pricing:       m.Pricing,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].IsFree != infos[j].IsFree {
			return infos[i].IsFree
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func supportsImages(modalities []string) bool {
	for _, m := range modalities {
		if m == "image" {
			return true
		}
	}
	return false
}

func isFreePricing(p ModelPricing) bool {
	return p.Prompt == "0" && p.Completion == "0" && (p.Image == "" || p.Image == "0")
}
