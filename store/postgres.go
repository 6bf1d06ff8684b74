package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/logger"
)

// PostgresStore is a pgvector-backed corpus store for deployments that
// already run Postgres. Rebuilds use the same generation-swap discipline as
// the Redis backend, here inside a single transaction. Conversations stay in
// Redis regardless of the corpus backend.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, log *logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresStore{pool: pool, log: log}
}

var _ corpus.Store = (*PostgresStore)(nil)

func (s *PostgresStore) ReplaceAll(ctx context.Context, chunks []corpus.Chunk) (err error) {
	gen := time.Now().UnixNano()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.log.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	for _, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO corpus_chunks (id, generation, url, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, chunk.ID, gen, chunk.URL, chunk.Text, pgvector.NewVector(chunk.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO corpus_state (id, generation) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET generation = EXCLUDED.generation
	`, gen); err != nil {
		return fmt.Errorf("swap corpus generation: %w", err)
	}

	if _, err = tx.Exec(ctx, "DELETE FROM corpus_chunks WHERE generation <> $1", gen); err != nil {
		return fmt.Errorf("delete stale generations: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit corpus replace: %w", err)
	}

	s.log.Info("corpus generation swapped", "generation", gen, "chunks", len(chunks))
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]corpus.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.url, c.content, c.embedding
		FROM corpus_chunks c
		JOIN corpus_state st ON st.generation = c.generation
		ORDER BY c.url, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	var chunks []corpus.Chunk
	for rows.Next() {
		var (
			chunk corpus.Chunk
			vec   pgvector.Vector
		)
		if err := rows.Scan(&chunk.ID, &chunk.URL, &chunk.Text, &vec); err != nil {
			return nil, fmt.Errorf("scan corpus chunk: %w", err)
		}
		chunk.Embedding = vec.Slice()
		chunks = append(chunks, chunk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return chunks, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE corpus_chunks"); err != nil {
		return fmt.Errorf("truncate corpus: %w", err)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM corpus_state"); err != nil {
		return fmt.Errorf("reset corpus state: %w", err)
	}
	return nil
}
