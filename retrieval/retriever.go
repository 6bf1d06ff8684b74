// Package retrieval ranks corpus chunks against a query by cosine
// similarity.
package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/embeddings"
	"github.com/HelloJC24/BNGCIA/logger"
)

// Match pairs a corpus chunk with its similarity score for one query.
// Scores are ephemeral and never persisted.
type Match struct {
	Score float64
	Chunk corpus.Chunk
}

type Retriever struct {
	embedder  *embeddings.BatchEmbedder
	threshold float64
	log       *logger.Logger
}

func New(embedder *embeddings.BatchEmbedder, threshold float64, log *logger.Logger) *Retriever {
	if log == nil {
		log = logger.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		threshold: threshold,
		log:       log,
	}
}

// Retrieve embeds the query, scores every chunk, keeps the ones at or above
// the relevance threshold, and returns the top topK of those in descending
// score order. Ties keep corpus order. The threshold applies across the full
// ranked set before truncation, so a relevant chunk is never lost to the
// cutoff. Returns an empty slice, never an error, for an empty corpus or a
// query that matches nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string, chunks []corpus.Chunk, topK int) []Match {
	if len(chunks) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	embedded := r.embedder.EmbedOne(ctx, query)
	if embedded.Substituted {
		// A zero query vector scores 0 against everything; surfacing
		// arbitrary chunks would be worse than admitting no match.
		r.log.Warn("query embedding failed, returning no matches", "query_len", len(query))
		return nil
	}

	matches := make([]Match, 0, len(chunks))
	for _, chunk := range chunks {
		score := CosineSimilarity(embedded.Vector, chunk.Embedding)
		if score < r.threshold {
			continue
		}
		matches = append(matches, Match{Score: score, Chunk: chunk})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	r.log.Info("retrieved chunks", "matches", len(matches), "corpus_size", len(chunks), "threshold", r.threshold)
	return matches
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|), or exactly 0 when either
// vector has zero norm or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
