// Package store provides the persistence backends for the corpus and the
// per-user conversation logs.
package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/HelloJC24/BNGCIA/chat"
	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/logger"
)

const (
	corpusCurrentKey   = "rag:corpus:current"
	corpusGenPrefix    = "rag:corpus:gen:"
	conversationPrefix = "rag:conversation:"

	conversationTTL = 7 * 24 * time.Hour
	maxMessages     = 50
)

// RedisStore keeps the corpus as one JSON record per chunk under a
// generation namespace, with a pointer key naming the live generation.
// Rebuilds write the new generation fully before swapping the pointer, so a
// concurrent reader never observes a half-written or empty corpus.
type RedisStore struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewRedisStore(rdb *goredis.Client, log *logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisStore{rdb: rdb, log: log}
}

var (
	_ corpus.Store           = (*RedisStore)(nil)
	_ chat.ConversationStore = (*RedisStore)(nil)
)

func (s *RedisStore) ReplaceAll(ctx context.Context, chunks []corpus.Chunk) error {
	gen := strconv.FormatInt(time.Now().UnixNano(), 10)

	pipe := s.rdb.Pipeline()
	for _, chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
		}
		pipe.Set(ctx, chunkKey(gen, chunk.ID), data, 0)
		pipe.SAdd(ctx, generationKey(gen), chunk.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write corpus generation %s: %w", gen, err)
	}

	oldGen, err := s.rdb.Get(ctx, corpusCurrentKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("read current generation: %w", err)
	}
	if err := s.rdb.Set(ctx, corpusCurrentKey, gen, 0).Err(); err != nil {
		return fmt.Errorf("swap corpus generation: %w", err)
	}
	s.log.Info("corpus generation swapped", "generation", gen, "chunks", len(chunks))

	if oldGen != "" && oldGen != gen {
		if err := s.deleteGeneration(ctx, oldGen); err != nil {
			// The pointer already moved; a stale generation only wastes
			// memory until the next rebuild cleans it up.
			s.log.Warn("failed to delete previous corpus generation", "generation", oldGen, "error", err)
		}
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context) ([]corpus.Chunk, error) {
	gen, err := s.rdb.Get(ctx, corpusCurrentKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current generation: %w", err)
	}

	ids, err := s.rdb.SMembers(ctx, generationKey(gen)).Result()
	if err != nil {
		return nil, fmt.Errorf("read corpus ids: %w", err)
	}

	chunks := make([]corpus.Chunk, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, chunkKey(gen, id)).Result()
		if errors.Is(err, goredis.Nil) {
			s.log.Warn("corpus record missing", "id", id, "generation", gen)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus record %s: %w", id, err)
		}

		var chunk corpus.Chunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.log.Warn("skipping malformed corpus record", "id", id, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	gen, err := s.rdb.Get(ctx, corpusCurrentKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read current generation: %w", err)
	}

	if err := s.rdb.Del(ctx, corpusCurrentKey).Err(); err != nil {
		return fmt.Errorf("delete corpus pointer: %w", err)
	}
	return s.deleteGeneration(ctx, gen)
}

func (s *RedisStore) deleteGeneration(ctx context.Context, gen string) error {
	ids, err := s.rdb.SMembers(ctx, generationKey(gen)).Result()
	if err != nil {
		return fmt.Errorf("read generation members: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, chunkKey(gen, id))
	}
	pipe.Del(ctx, generationKey(gen))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete generation %s: %w", gen, err)
	}
	return nil
}

// Append pushes a message onto the user's log, trims it to the most recent
// maxMessages entries, and refreshes the 7-day TTL, all in one pipeline.
func (s *RedisStore) Append(ctx context.Context, userID string, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal conversation message: %w", err)
	}

	key := conversationKey(userID)
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxMessages-1)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation message: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = maxMessages
	}

	entries, err := s.rdb.LRange(ctx, conversationKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation history: %w", err)
	}

	// The list is newest first; walk it backwards for chronological order.
	messages := make([]chat.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var msg chat.Message
		if err := json.Unmarshal([]byte(entries[i]), &msg); err != nil {
			s.log.Warn("skipping malformed conversation message", "user", userID, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, conversationKey(userID)).Err()
}

func generationKey(gen string) string {
	return corpusGenPrefix + gen
}

func chunkKey(gen, id string) string {
	return corpusGenPrefix + gen + ":" + id
}

func conversationKey(userID string) string {
	sum := md5.Sum([]byte(userID))
	return conversationPrefix + hex.EncodeToString(sum[:])
}
