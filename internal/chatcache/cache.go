// Package chatcache persists the chat transcript between runs.
package chatcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
)

// Key is the fixed storage key of the transcript.
const Key = "ocrapillm_chat_history"

// Cache stores one transcript. Load never fails on corrupt data; it
// returns an empty transcript instead.
type Cache interface {
	Load(ctx context.Context) ([]model.ChatMessage, error)
	Save(ctx context.Context, msgs []model.ChatMessage) error
	Clear(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string // file|redis
	Dir           string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	Logger        *zerolog.Logger
}

// Open returns the configured backend. An empty backend means file.
func Open(ctx context.Context, opts Options) (Cache, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	switch opts.Backend {
	case "", "file":
		return NewFileCache(opts.Dir, opts.Logger), nil
	case "redis":
		cli, err := NewRedisClient(ctx, opts.RedisURL, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisCache(cli, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown chat cache backend %q (want file or redis)", opts.Backend)
	}
}

func decode(raw []byte, log *zerolog.Logger, source string) []model.ChatMessage {
	if len(raw) == 0 {
		return nil
	}
	var msgs []model.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		log.Warn().Err(err).Str("source", source).Msg("chat history is corrupt, starting empty")
		return nil
	}
	return msgs
}
