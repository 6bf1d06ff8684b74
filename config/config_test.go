package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/HelloJC24/BNGCIA/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STORE_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K",
		"SIMILARITY_THRESHOLD", "CRAWL_MAX_PAGES", "CRAWL_REQUEST_TIMEOUT",
		"SEED_URLS", "EMBEDDINGS_MODEL", "LLM_MODEL",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, config.StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.3, cfg.SimilarityThreshold)
	assert.Equal(t, 300, cfg.MaxPages)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.NotEmpty(t, cfg.SeedURLs)
	assert.True(t, cfg.SameHostOnly)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("SIMILARITY_THRESHOLD", "0.55")
	t.Setenv("CRAWL_SAME_HOST_ONLY", "false")
	t.Setenv("CRAWL_REQUEST_TIMEOUT", "30s")
	t.Setenv("SEED_URLS", "https://a.example.com, https://b.example.com ,")

	cfg := config.Load()

	assert.Equal(t, config.StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 0.55, cfg.SimilarityThreshold)
	assert.False(t, cfg.SameHostOnly)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SeedURLs)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("SIMILARITY_THRESHOLD", "high")
	t.Setenv("CRAWL_SAME_HOST_ONLY", "maybe")

	cfg := config.Load()

	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 0.3, cfg.SimilarityThreshold)
	assert.True(t, cfg.SameHostOnly)
}
