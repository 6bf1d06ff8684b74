package corpus

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/HelloJC24/BNGCIA/chunker"
	"github.com/HelloJC24/BNGCIA/crawler"
	"github.com/HelloJC24/BNGCIA/embeddings"
	"github.com/HelloJC24/BNGCIA/logger"
)

// PageSource produces the url -> extracted text mapping the builder chunks
// and embeds. Satisfied by *crawler.Crawler.
type PageSource interface {
	Crawl(ctx context.Context, seeds []string, opts crawler.Options) (map[string]string, error)
}

type BuilderConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkLen  int
}

// Builder runs the crawl -> chunk -> embed -> persist pipeline.
type Builder struct {
	source   PageSource
	embedder *embeddings.BatchEmbedder
	store    Store
	log      *logger.Logger
	cfg      BuilderConfig
}

func NewBuilder(source PageSource, embedder *embeddings.BatchEmbedder, store Store, log *logger.Logger, cfg BuilderConfig) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.MinChunkLen <= 0 {
		cfg.MinChunkLen = 50
	}
	return &Builder{
		source:   source,
		embedder: embedder,
		store:    store,
		log:      log,
		cfg:      cfg,
	}
}

// Build crawls the seed URLs, chunks and embeds every page, and replaces the
// persisted corpus with the result. Pages are processed in sorted URL order
// and chunk ids are content addressed, so two builds over identical page
// content yield an identical corpus. A storage failure is fatal; embedding
// failures degrade to zero vectors and the build continues.
func (b *Builder) Build(ctx context.Context, seeds []string, opts crawler.Options) ([]Chunk, error) {
	pages, err := b.source.Crawl(ctx, seeds, opts)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	if len(pages) == 0 {
		b.log.Warn("crawl produced no pages with content", "seeds", len(seeds))
		return nil, nil
	}

	urls := make([]string, 0, len(pages))
	for url := range pages {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var (
		texts      []string
		provenance []Chunk
		seen       = make(map[string]int)
	)
	for _, url := range urls {
		pieces := chunker.Chunk(pages[url], b.cfg.ChunkSize, b.cfg.ChunkOverlap)
		b.log.Info("chunked page", "url", url, "chunks", len(pieces))

		for _, text := range pieces {
			if utf8.RuneCountInString(text) < b.cfg.MinChunkLen {
				continue
			}
			id := chunker.IDFor(url, text)
			if idx, dup := seen[id]; dup {
				// Identical id means identical chunk; keep the latest.
				texts[idx] = text
				provenance[idx] = Chunk{ID: id, URL: url, Text: text}
				continue
			}
			seen[id] = len(texts)
			texts = append(texts, text)
			provenance = append(provenance, Chunk{ID: id, URL: url, Text: text})
		}
	}

	if len(texts) == 0 {
		b.log.Warn("no chunks survived filtering")
		return nil, nil
	}

	b.log.Info("embedding corpus", "chunks", len(texts))
	embedded := b.embedder.EmbedAll(ctx, texts)

	substituted := 0
	chunks := make([]Chunk, len(provenance))
	for i, meta := range provenance {
		meta.Embedding = embedded[i].Vector
		if embedded[i].Substituted {
			substituted++
		}
		chunks[i] = meta
	}
	if substituted > 0 {
		b.log.Warn("some chunks carry substituted zero vectors", "count", substituted)
	}

	if err := b.store.ReplaceAll(ctx, chunks); err != nil {
		return nil, fmt.Errorf("persist corpus: %w", err)
	}

	b.log.Info("corpus built", "chunks", len(chunks), "pages", len(pages))
	return chunks, nil
}
