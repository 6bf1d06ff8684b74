// Package chat answers questions from the persisted corpus, keeping a
// bounded per-user conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/llm"
	"github.com/HelloJC24/BNGCIA/logger"
	"github.com/HelloJC24/BNGCIA/retrieval"
)

// ErrNoCorpus signals that nothing has been built yet; callers should ask
// for a corpus build rather than retry.
var ErrNoCorpus = errors.New("no corpus available, build one first")

const (
	noInfoAnswer   = "I don't have enough relevant information in my knowledge base to answer this question."
	fallbackAnswer = "I encountered an error while generating the answer. Please try again."

	// historyWindow is how many recent messages feed the prompt;
	// historyFetch is how many are read from the store per question.
	historyWindow = 3
	historyFetch  = 5

	sourcePreviewLen = 200
)

type Defaults struct {
	TopK            int
	MaxContextChars int
}

type AskOptions struct {
	TopK            int
	MaxContextChars int
}

type Service struct {
	corpus        corpus.Store
	conversations ConversationStore
	retriever     *retrieval.Retriever
	llm           llm.Client
	log           *logger.Logger
	defaults      Defaults

	// userLocks serializes the read-append-append sequence per user so
	// concurrent questions from the same user cannot interleave their
	// history writes. Different users never contend.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewService(corpusStore corpus.Store, conversations ConversationStore, retriever *retrieval.Retriever, llmClient llm.Client, log *logger.Logger, defaults Defaults) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if defaults.TopK <= 0 {
		defaults.TopK = 5
	}
	if defaults.MaxContextChars <= 0 {
		defaults.MaxContextChars = 4000
	}
	return &Service{
		corpus:        corpusStore,
		conversations: conversations,
		retriever:     retriever,
		llm:           llmClient,
		log:           log,
		defaults:      defaults,
		userLocks:     make(map[string]*sync.Mutex),
	}
}

// Ask answers a question from the stored corpus for one user. Storage
// failures on the corpus read are returned as errors; everything downstream
// degrades to a well-formed answer instead of failing.
func (s *Service) Ask(ctx context.Context, query, userID string, opts AskOptions) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaults.TopK
	}
	maxContextChars := opts.MaxContextChars
	if maxContextChars <= 0 {
		maxContextChars = s.defaults.MaxContextChars
	}

	chunks, err := s.corpus.Load(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("load corpus: %w", err)
	}
	if len(chunks) == 0 {
		return Response{}, ErrNoCorpus
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	history := s.loadHistory(ctx, userID)
	s.appendMessage(ctx, userID, Message{Role: llm.RoleUser, Content: query, Timestamp: time.Now().UTC()})

	matches := s.retriever.Retrieve(ctx, historyAwareQuery(query, history), chunks, topK)

	answer, sources := s.compose(ctx, query, matches, history, maxContextChars)

	s.appendMessage(ctx, userID, Message{
		Role:      llm.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now().UTC(),
		Sources:   sources,
	})

	return Response{
		Answer:         answer,
		Sources:        sources,
		ConversationID: uuid.NewString(),
		Timestamp:      time.Now().UTC(),
	}, nil
}

// History returns up to limit stored messages for a user, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	if s.conversations == nil {
		return nil, nil
	}
	return s.conversations.History(ctx, userID, limit)
}

// ClearHistory removes a user's conversation log.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	if s.conversations == nil {
		return nil
	}
	return s.conversations.Delete(ctx, userID)
}

func (s *Service) compose(ctx context.Context, query string, matches []retrieval.Match, history []Message, maxContextChars int) (string, []Source) {
	if len(matches) == 0 {
		return noInfoAnswer, []Source{}
	}

	contextBlock, sources := buildContext(matches, maxContextChars)
	if len(sources) == 0 {
		return noInfoAnswer, []Source{}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: formatUserPrompt(query, contextBlock, history)},
	}

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		s.log.Error("answer generation failed", "error", err)
		return fallbackAnswer, sources
	}

	return strings.TrimSpace(answer), sources
}

func (s *Service) loadHistory(ctx context.Context, userID string) []Message {
	if s.conversations == nil {
		return nil
	}
	history, err := s.conversations.History(ctx, userID, historyFetch)
	if err != nil {
		s.log.Warn("conversation history unavailable", "user", userID, "error", err)
		return nil
	}
	return history
}

func (s *Service) appendMessage(ctx context.Context, userID string, msg Message) {
	if s.conversations == nil {
		return
	}
	if err := s.conversations.Append(ctx, userID, msg); err != nil {
		s.log.Warn("failed to record conversation message", "user", userID, "role", msg.Role, "error", err)
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// historyAwareQuery folds the user's recent questions into the embedding
// query so follow-ups ("what about their pricing?") retrieve against the
// conversation topic, not just the literal words.
func historyAwareQuery(query string, history []Message) string {
	if len(history) == 0 {
		return query
	}

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	var prior []string
	for _, msg := range recent {
		if msg.Role == llm.RoleUser {
			prior = append(prior, msg.Content)
		}
	}
	if len(prior) == 0 {
		return query
	}

	return fmt.Sprintf("Previous context: %s\n\nCurrent question: %s", strings.Join(prior, " "), query)
}
