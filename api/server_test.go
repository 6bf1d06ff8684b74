package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HelloJC24/BNGCIA/api"
	"github.com/HelloJC24/BNGCIA/chat"
	"github.com/HelloJC24/BNGCIA/config"
	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/crawler"
	"github.com/HelloJC24/BNGCIA/embeddings"
	"github.com/HelloJC24/BNGCIA/llm"
	"github.com/HelloJC24/BNGCIA/retrieval"
	"github.com/HelloJC24/BNGCIA/store"
)

type fakeSource struct {
	pages map[string]string
}

func (f *fakeSource) Crawl(context.Context, []string, crawler.Options) (map[string]string, error) {
	return f.pages, nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

type stubLLM struct{ answer string }

func (s *stubLLM) Generate(context.Context, []llm.Message) (string, error) {
	return s.answer, nil
}

func newTestServer(st *store.MemoryStore, pages map[string]string) *api.Server {
	return newTestServerWithLocal(st, pages, nil)
}

func newTestServerWithLocal(st *store.MemoryStore, pages map[string]string, local corpus.Store) *api.Server {
	cfg := config.Config{
		SeedURLs:            []string{"https://example.com/"},
		SimilarityThreshold: 0.3,
		ChunkSize:           200,
		ChunkOverlap:        40,
		MinChunkLen:         20,
	}

	batcher := embeddings.NewBatchEmbedder(unitEmbedder{}, 100, 2, nil)
	builder := corpus.NewBuilder(&fakeSource{pages: pages}, batcher, st, nil, corpus.BuilderConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunkLen:  cfg.MinChunkLen,
	})
	retriever := retrieval.New(batcher, cfg.SimilarityThreshold, nil)
	svc := chat.NewService(st, st, retriever, &stubLLM{answer: "A stubbed answer."}, nil, chat.Defaults{})

	return api.New(cfg, nil, builder, svc, st, local)
}

func seedChunk(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	err := st.ReplaceAll(context.Background(), []corpus.Chunk{{
		ID:        "services",
		URL:       "https://example.com/services",
		Text:      "We offer consulting and custom development services.",
		Embedding: []float32{1, 0},
	}})
	if err != nil {
		t.Fatalf("seed corpus: %v", err)
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(store.NewMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAskEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, nil)

	rec := postJSON(t, server, "/v1/ask", map[string]any{
		"query":   "What services do you offer?",
		"user_id": "user-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp chat.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "A stubbed answer." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(resp.Sources))
	}
}

func TestAskEndpointValidation(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, nil)

	if rec := postJSON(t, server, "/v1/ask", map[string]any{"user_id": "user-1"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query should be 400, got %d", rec.Code)
	}
	if rec := postJSON(t, server, "/v1/ask", map[string]any{"query": "hi"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id should be 400, got %d", rec.Code)
	}
}

func TestAskEndpointWithoutCorpus(t *testing.T) {
	server := newTestServer(store.NewMemoryStore(), nil)

	rec := postJSON(t, server, "/v1/ask", map[string]any{
		"query":   "anything",
		"user_id": "user-1",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a corpus, got %d", rec.Code)
	}
}

func TestBuildEndpoint(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": strings.Repeat("The company builds custom software for clients in the region. ", 8),
	}
	server := newTestServer(store.NewMemoryStore(), pages)

	rec := postJSON(t, server, "/v1/build", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message        string `json:"message"`
		DocumentsCount int    `json:"documents_count"`
		URLsProcessed  int    `json:"urls_processed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DocumentsCount == 0 {
		t.Fatal("expected a non-empty corpus")
	}
	if resp.URLsProcessed != 1 {
		t.Fatalf("expected 1 URL, got %d", resp.URLsProcessed)
	}
}

func TestBuildEndpointSkipsExistingCorpus(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, map[string]string{})

	rec := postJSON(t, server, "/v1/build", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already exists") {
		t.Fatalf("expected the already-exists message, got %s", rec.Body.String())
	}

	// With force_rebuild the empty crawl becomes a server-side failure.
	rec = postJSON(t, server, "/v1/build", map[string]any{"force_rebuild": true})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for an empty forced rebuild, got %d", rec.Code)
	}
}

func TestConversationEndpoints(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, nil)

	rec := postJSON(t, server, "/v1/ask", map[string]any{"query": "What services?", "user_id": "user-9"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/conversation/user-9", nil)
	get := httptest.NewRecorder()
	server.ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}

	var conv struct {
		UserID   string         `json:"user_id"`
		Messages []chat.Message `json:"messages"`
		Count    int            `json:"count"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if conv.Count != 2 {
		t.Fatalf("expected question and answer, got %d messages", conv.Count)
	}

	del := httptest.NewRecorder()
	server.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/v1/conversation/user-9", nil))
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", del.Code)
	}

	again := httptest.NewRecorder()
	server.ServeHTTP(again, httptest.NewRequest(http.MethodGet, "/v1/conversation/user-9", nil))
	var after struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(again.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if after.Count != 0 {
		t.Fatalf("expected empty history after delete, got %d", after.Count)
	}
}

func TestCorpusMigrateEndpoint(t *testing.T) {
	local := store.NewMemoryStore()
	seedChunk(t, local)

	live := store.NewMemoryStore()
	server := newTestServerWithLocal(live, nil, local)

	rec := postJSON(t, server, "/v1/corpus/migrate", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ChunksMigrated int `json:"documents_migrated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChunksMigrated != 1 {
		t.Fatalf("expected 1 migrated chunk, got %d", resp.ChunksMigrated)
	}

	chunks, err := live.Load(context.Background())
	if err != nil {
		t.Fatalf("load live corpus: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "services" {
		t.Fatalf("migrated corpus not in the live store: %+v", chunks)
	}
}

func TestCorpusMigrateEndpointWithoutLocalCorpus(t *testing.T) {
	server := newTestServerWithLocal(store.NewMemoryStore(), nil, store.NewMemoryStore())
	if rec := postJSON(t, server, "/v1/corpus/migrate", map[string]any{}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with an empty local corpus, got %d", rec.Code)
	}

	server = newTestServer(store.NewMemoryStore(), nil)
	if rec := postJSON(t, server, "/v1/corpus/migrate", map[string]any{}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no local source configured, got %d", rec.Code)
	}
}

func TestConversationResponseCarriesTimestamp(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, nil)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversation/user-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Timestamp.IsZero() {
		t.Fatal("conversation response missing timestamp")
	}
}

func TestCorpusStatsEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedChunk(t, st)
	server := newTestServer(st, nil)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/corpus/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats corpus.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalChunks != 1 || stats.UniqueURLs != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(store.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("expected Allow header POST, got %q", allow)
	}
}
