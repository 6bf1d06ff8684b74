package store

import (
	"context"
	"sync"
	"time"

	"github.com/HelloJC24/BNGCIA/chat"
	"github.com/HelloJC24/BNGCIA/corpus"
)

// MemoryStore holds the corpus and conversation logs in process memory. It
// backs tests and single-shot CLI runs that have no Redis or Postgres at
// hand; nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	chunks        []corpus.Chunk
	conversations map[string][]timedMessage
}

type timedMessage struct {
	msg     chat.Message
	savedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]timedMessage)}
}

var (
	_ corpus.Store           = (*MemoryStore)(nil)
	_ chat.ConversationStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) ReplaceAll(_ context.Context, chunks []corpus.Chunk) error {
	replacement := make([]corpus.Chunk, len(chunks))
	copy(replacement, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = replacement
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]corpus.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]corpus.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}

func (s *MemoryStore) Append(_ context.Context, userID string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.conversations[userID], timedMessage{msg: msg, savedAt: time.Now()})
	if len(log) > maxMessages {
		log = log[len(log)-maxMessages:]
	}
	s.conversations[userID] = log
	return nil
}

func (s *MemoryStore) History(_ context.Context, userID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = maxMessages
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-conversationTTL)
	log := s.conversations[userID]

	live := make([]chat.Message, 0, len(log))
	for _, entry := range log {
		if entry.savedAt.Before(cutoff) {
			continue
		}
		live = append(live, entry.msg)
	}
	if len(live) > limit {
		live = live[len(live)-limit:]
	}
	return live, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	return nil
}
