// Package corpus defines the retrieval corpus and the pipeline that builds
// it from crawled websites.
package corpus

import (
	"context"
	"sort"
)

// Chunk is the unit of embedding and retrieval: a bounded slice of a page's
// extracted text plus the vector computed for it. ID is a pure function of
// (URL, leading text), so rebuilding from unchanged pages produces the same
// ids.
type Chunk struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// Store is the persistence boundary for the corpus. ReplaceAll must be
// atomic from a reader's point of view: a concurrent Load observes either
// the old corpus or the new one, never an empty window in between.
type Store interface {
	ReplaceAll(ctx context.Context, chunks []Chunk) error
	Load(ctx context.Context) ([]Chunk, error)
	Clear(ctx context.Context) error
}

type Stats struct {
	TotalChunks      int      `json:"total_documents"`
	UniqueURLs       int      `json:"unique_urls"`
	TotalCharacters  int      `json:"total_characters"`
	AverageChunkSize int      `json:"average_chunk_size"`
	URLs             []string `json:"urls"`
}

func ComputeStats(chunks []Chunk) Stats {
	if len(chunks) == 0 {
		return Stats{URLs: []string{}}
	}

	urls := make(map[string]struct{})
	totalChars := 0
	for _, chunk := range chunks {
		urls[chunk.URL] = struct{}{}
		totalChars += len(chunk.Text)
	}

	sorted := make([]string, 0, len(urls))
	for url := range urls {
		sorted = append(sorted, url)
	}
	sort.Strings(sorted)

	return Stats{
		TotalChunks:      len(chunks),
		UniqueURLs:       len(urls),
		TotalCharacters:  totalChars,
		AverageChunkSize: totalChars / len(chunks),
		URLs:             sorted,
	}
}
