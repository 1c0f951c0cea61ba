// Package app wires the client components for one CLI invocation.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/autosave"
	"github.com/shibinsp/ocrapillm/internal/chat"
	"github.com/shibinsp/ocrapillm/internal/chatcache"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/config"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/store"
	"github.com/shibinsp/ocrapillm/internal/task"
	"github.com/shibinsp/ocrapillm/internal/upload"
)

// Session owns the store and every component that reads or writes it.
type Session struct {
	Config *config.Global
	Log    *zerolog.Logger
	Clock  clock.Clock
	Client *api.Client
	Store  *store.Store
	Poller *task.Poller
	Upload *upload.Orchestrator
	Chat   *chat.Service

	cache chatcache.Cache
}

// Options overrides pieces of the wiring, mainly for tests.
type Options struct {
	Clock  clock.Clock
	Logger *zerolog.Logger
	// Cache replaces the configured chat cache backend.
	Cache chatcache.Cache
}

// New builds a session from configuration. Nothing is fetched yet.
func New(ctx context.Context, cfg *config.Global, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	log := opts.Logger

	client := api.NewClient(api.Options{
		BaseURL:          cfg.APIBaseURL,
		HTTPTimeout:      cfg.HTTPTimeout(),
		UploadTimeout:    cfg.UploadTimeout(),
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryDelay:       cfg.RetryDelay(),
		Clock:            opts.Clock,
		Logger:           log,
	})

	initial := store.Initial()
	initial.AutoSave = cfg.AutoSaveEnabled
	st := store.New(initial, log)

	poller := task.NewPoller(client, opts.Clock, log)
	if d := cfg.PollInterval(); d > 0 {
		poller.Interval = d
	}
	if cfg.PollMaxAttempts > 0 {
		poller.MaxAttempts = cfg.PollMaxAttempts
	}
	if cfg.PollMaxFetchErrors >= 0 {
		poller.MaxFetchErrors = cfg.PollMaxFetchErrors
	}

	orch := upload.New(client, poller, st, opts.Clock, log)
	orch.MaxSize = cfg.MaxUploadBytes()
	orch.StrictPDF = cfg.StrictPDF

	cache := opts.Cache
	if cache == nil {
		var err error
		cache, err = chatcache.Open(ctx, chatcache.Options{
			Backend:       cfg.ChatCache,
			Dir:           cfg.DataDir,
			RedisURL:      cfg.RedisURL,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			Logger:        log,
		})
		if err != nil {
			return nil, fmt.Errorf("open chat cache: %w", err)
		}
	}

	return &Session{
		Config: cfg,
		Log:    log,
		Clock:  opts.Clock,
		Client: client,
		Store:  st,
		Poller: poller,
		Upload: orch,
		Chat:   chat.NewService(client, st, cache, opts.Clock, log),
		cache:  cache,
	}, nil
}

// Load fetches the document list and restores the chat transcript
// concurrently. A list failure is returned; the transcript is best effort.
func (s *Session) Load(ctx context.Context) error {
	var docs []model.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.Client.ListDocuments(gctx)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.Chat.Load(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.Store.Dispatch(store.SetDocuments{Documents: docs})
	return nil
}

// Open selects a document and loads its text into the editor buffer.
func (s *Session) Open(ctx context.Context, id string) error {
	text, err := s.Client.DocumentContent(ctx, id)
	if err != nil {
		return fmt.Errorf("load document %s: %w", id, err)
	}
	s.Store.Dispatch(store.SelectDocument{ID: id, Text: text})
	return nil
}

// Delete removes a document server-side and from the store.
func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.Client.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.Store.Dispatch(store.DeleteDocument{ID: id})
	return nil
}

// AutoSaver starts an auto-save coordinator on the session store. The
// caller must Close it.
func (s *Session) AutoSaver() *autosave.Coordinator {
	return autosave.New(s.Store, s.Client, autosave.Options{
		Delay:  s.Config.AutoSaveDelay(),
		Clock:  s.Clock,
		Logger: s.Log,
	})
}

func (s *Session) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
