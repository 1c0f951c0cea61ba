// Package chat sends questions about documents and keeps the transcript in
// the store and the local cache.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/chatcache"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/store"
)

// Client is the subset of *api.Client used for chat.
type Client interface {
	Chat(ctx context.Context, docID, message string, history []model.ChatMessage) (string, error)
}

// Service appends to the store's transcript and mirrors it to the cache.
type Service struct {
	client Client
	store  *store.Store
	cache  chatcache.Cache
	clock  clock.Clock
	log    *zerolog.Logger
}

func NewService(client Client, st *store.Store, cache chatcache.Cache, clk clock.Clock, log *zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{client: client, store: st, cache: cache, clock: clk, log: log}
}

// Load restores the cached transcript. Cache failures leave the transcript
// empty.
func (s *Service) Load(ctx context.Context) {
	if s.cache == nil {
		return
	}
	msgs, err := s.cache.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("chat history unavailable")
		return
	}
	s.store.Dispatch(store.LoadChatHistory{Messages: msgs})
}

// Send asks a question about docID, or about all documents when docID is
// empty. On failure an assistant message flagged as error is recorded.
func (s *Service) Send(ctx context.Context, docID, text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, fmt.Errorf("message cannot be empty")
	}
	history := s.store.Snapshot().ChatHistory
	s.append(ctx, model.RoleUser, text, false)

	reply, err := s.client.Chat(ctx, docID, text, history)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", docID).Msg("chat request failed")
		msg := s.append(ctx, model.RoleAssistant, "Sorry, I couldn't answer that: "+err.Error(), true)
		return msg, fmt.Errorf("chat: %w", err)
	}
	return s.append(ctx, model.RoleAssistant, reply, false), nil
}

// Clear empties the transcript and the cache.
func (s *Service) Clear(ctx context.Context) error {
	s.store.Dispatch(store.ClearChat{})
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *Service) append(ctx context.Context, role, content string, isErr bool) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.clock.Now(),
		Error:     isErr,
	}
	s.store.Dispatch(store.AddChatMessage{Message: msg})
	if s.cache != nil {
		if err := s.cache.Save(ctx, s.store.Snapshot().ChatHistory); err != nil {
			s.log.Warn().Err(err).Msg("persist chat history")
		}
	}
	return msg
}
