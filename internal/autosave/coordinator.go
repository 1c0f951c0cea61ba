// Package autosave saves the editor buffer in the background after a quiet
// period, and on demand.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/metrics"
	"github.com/shibinsp/ocrapillm/internal/store"
)

const DefaultDelay = 30 * time.Second

var ErrNoDocument = errors.New("no document selected")

// Saver persists document text. *api.Client satisfies it.
type Saver interface {
	SaveDocument(ctx context.Context, id, content string, saveType api.SaveType) error
}

type saveKey struct{ doc, content string }

// Coordinator watches the store and saves modified text once edits have
// been quiet for Delay.
type Coordinator struct {
	store *store.Store
	saver Saver
	clock clock.Clock
	delay time.Duration
	log   *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()
	wg     sync.WaitGroup

	mu       sync.Mutex
	timer    clock.Timer
	gen      uint64 // bumped whenever timer is replaced or stopped
	armedDoc string
	lastText string
	inflight map[saveKey]bool
	failed   saveKey // last content the server rejected; not re-armed until edited
	closed   bool
}

// Options configures a Coordinator. Zero values take defaults.
type Options struct {
	Delay  time.Duration
	Clock  clock.Clock
	Logger *zerolog.Logger
}

// New starts a coordinator subscribed to st.
func New(st *store.Store, saver Saver, opts Options) *Coordinator {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:    st,
		saver:    saver,
		clock:    opts.Clock,
		delay:    opts.Delay,
		log:      opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[saveKey]bool),
	}
	c.unsub = st.Subscribe(c.observe)
	c.observe(st.Snapshot(), nil)
	return c
}

// observe (re)arms or stops the debounce timer for each new state.
func (c *Coordinator) observe(s store.State, _ store.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocked(s)
}

func (c *Coordinator) observeLocked(s store.State) {
	if c.closed {
		return
	}
	doc := s.CurrentID
	if doc != c.armedDoc {
		c.stopLocked()
	}
	if doc == "" || !s.AutoSave || !s.Modified() {
		c.stopLocked()
		c.armedDoc, c.lastText = doc, s.ExtractedText
		return
	}
	if c.failed == (saveKey{doc, s.ExtractedText}) {
		c.armedDoc, c.lastText = doc, s.ExtractedText
		return
	}
	if c.timer != nil && doc == c.armedDoc && s.ExtractedText == c.lastText {
		return
	}
	c.stopLocked()
	c.armedDoc, c.lastText = doc, s.ExtractedText
	c.gen++
	gen := c.gen
	c.wg.Add(1)
	c.timer = c.clock.AfterFunc(c.delay, func() {
		defer c.wg.Done()
		c.fire(doc, gen)
	})
}

func (c *Coordinator) stopLocked() {
	c.gen++
	if c.timer != nil {
		if c.timer.Stop() {
			c.wg.Done()
		}
		c.timer = nil
	}
}

// fire runs when a timer expires. A timer that was replaced or stopped
// after it started running sees a newer generation and does nothing.
func (c *Coordinator) fire(doc string, gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()
	s := c.store.Snapshot()
	if s.CurrentID != doc || !s.AutoSave || !s.Modified() {
		return
	}
	_ = c.save(c.ctx, doc, s.ExtractedText, api.SaveAuto)
}

// SaveNow stops any pending auto-save and saves the current buffer as a
// manual save.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	s := c.store.Snapshot()
	if s.CurrentID == "" {
		return ErrNoDocument
	}
	return c.save(ctx, s.CurrentID, s.ExtractedText, api.SaveManual)
}

func (c *Coordinator) save(ctx context.Context, doc, content string, saveType api.SaveType) error {
	key := saveKey{doc, content}
	c.mu.Lock()
	if c.inflight[key] {
		c.mu.Unlock()
		metrics.IncSave(string(saveType), "skipped")
		return nil
	}
	if s := c.store.Snapshot(); s.CurrentID == doc && s.SavedText == content {
		c.mu.Unlock()
		metrics.IncSave(string(saveType), "skipped")
		return nil
	}
	c.inflight[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	log := logging.With(logging.WithDocumentID(ctx, doc), c.log)
	err := c.saver.SaveDocument(ctx, doc, content, saveType)
	switch {
	case err == nil:
		metrics.IncSave(string(saveType), "ok")
		log.Debug().Str("save_type", string(saveType)).Int("bytes", len(content)).Msg("document saved")
		c.mu.Lock()
		if c.failed.doc == doc {
			c.failed = saveKey{}
		}
		c.mu.Unlock()
		if c.store.Snapshot().CurrentID == doc {
			c.store.Dispatch(store.SetTextSaved{Content: &content})
		}
		return nil
	case api.IsNotFound(err):
		metrics.IncSave(string(saveType), "not_found")
		log.Warn().Msg("document no longer exists, clearing editor")
		if c.store.Snapshot().CurrentID == doc {
			c.store.Dispatch(store.ClearCurrentDocument{})
		}
		c.store.Dispatch(store.SetNotice{Notice: store.Notice{
			Level:   store.NoticeWarning,
			Message: fmt.Sprintf("Document %s no longer exists on the server; unsaved text was discarded.", doc),
		}})
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		metrics.IncSave(string(saveType), "error")
		log.Error().Err(err).Str("save_type", string(saveType)).Msg("save failed")
		c.mu.Lock()
		c.failed = key
		c.mu.Unlock()
		c.store.Dispatch(store.SetNotice{Notice: store.Notice{
			Level:   store.NoticeError,
			Message: fmt.Sprintf("Save failed: %v", err),
		}})
		return err
	}
}

// Close stops the timer, unsubscribes and waits for a running auto-save.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()
	c.unsub()
	c.cancel()
	c.wg.Wait()
}
