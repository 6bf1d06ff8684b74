package embeddings

import (
	"context"

	"github.com/HelloJC24/BNGCIA/logger"
)

const defaultBatchSize = 100

// Result is one embedded text. Substituted marks items whose batch failed at
// the embedding service and received a zero vector instead, so callers can
// tell degraded items apart from genuine low-similarity matches.
type Result struct {
	Vector      []float32
	Substituted bool
}

// BatchEmbedder slices input into service-sized batches and keeps positional
// correspondence between inputs and outputs even when a batch fails.
type BatchEmbedder struct {
	inner     Embedder
	batchSize int
	dimension int
	log       *logger.Logger
}

func NewBatchEmbedder(inner Embedder, batchSize, dimension int, log *logger.Logger) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchEmbedder{
		inner:     inner,
		batchSize: batchSize,
		dimension: dimension,
		log:       log,
	}
}

func (b *BatchEmbedder) Dimension() int {
	return b.dimension
}

// EmbedAll embeds texts in order, one batch request at a time. A failed
// batch substitutes a zero vector of the expected dimension for each of its
// texts rather than failing the whole call; the substitution is logged and
// flagged on each affected Result.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, 0, len(texts))
	if len(texts) == 0 {
		return results
	}

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := b.inner.Embed(ctx, batch)
		if err != nil || len(vectors) != len(batch) {
			if err != nil {
				b.log.Error("embedding batch failed, substituting zero vectors", "batch_start", start, "batch_size", len(batch), "error", err)
			} else {
				b.log.Error("embedding batch returned wrong count, substituting zero vectors", "batch_start", start, "want", len(batch), "got", len(vectors))
			}
			for range batch {
				results = append(results, Result{Vector: make([]float32, b.dimension), Substituted: true})
			}
			continue
		}

		for _, vec := range vectors {
			results = append(results, Result{Vector: vec})
		}
	}

	return results
}

// EmbedOne embeds a single text, typically a query.
func (b *BatchEmbedder) EmbedOne(ctx context.Context, text string) Result {
	return b.EmbedAll(ctx, []string{text})[0]
}
