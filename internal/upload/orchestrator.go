// Package upload drives a PDF from local validation through OCR to a
// committed document in the store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/metrics"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/progress"
	"github.com/shibinsp/ocrapillm/internal/store"
	"github.com/shibinsp/ocrapillm/internal/task"
)

const DefaultMaxSize int64 = 50 << 20

// ErrBusy is returned when an upload is already running.
var ErrBusy = errors.New("another upload is in progress")

// ValidationError rejects a file before any network call.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid file %s: %s", filepath.Base(e.Path), e.Reason)
}

// Client is the subset of *api.Client the orchestrator needs.
type Client interface {
	Upload(ctx context.Context, filename string, r io.Reader, onProgress func(int)) (*api.UploadResponse, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
}

// Orchestrator runs one upload at a time.
type Orchestrator struct {
	client Client
	poller *task.Poller
	store  *store.Store
	clock  clock.Clock
	log    *zerolog.Logger

	MaxSize   int64
	StrictPDF bool
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)

	mu    sync.Mutex
	busy  bool
	state State
}

func New(client Client, poller *task.Poller, st *store.Store, clk clock.Clock, log *zerolog.Logger) *Orchestrator {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		client:  client,
		poller:  poller,
		store:   st,
		clock:   clk,
		log:     log,
		MaxSize: DefaultMaxSize,
	}
}

// State returns the current state of the machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	hook := o.OnTransition
	o.mu.Unlock()
	o.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("upload state")
	if hook != nil {
		hook(from, to)
	}
}

// Run uploads the PDF at path and returns the committed document. On any
// failure the store's progress flags are reset and no document is added.
func (o *Orchestrator) Run(ctx context.Context, path string) (*model.Document, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.busy = true
	o.state = Idle
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()
	defer logging.TraceDuration(o.log, "Orchestrator.Run")()

	doc, err := o.run(ctx, path)
	if err != nil {
		o.fail(err)
		return nil, err
	}
	metrics.IncUpload("ok")
	o.transition(Done)
	return doc, nil
}

func (o *Orchestrator) run(ctx context.Context, path string) (*model.Document, error) {
	o.transition(Validating)
	info, pages, err := o.validate(path)
	if err != nil {
		return nil, err
	}

	o.transition(Uploading)
	o.store.Dispatch(store.SetUploading{Uploading: true})
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	resp, err := o.client.Upload(ctx, filepath.Base(path), f, func(p int) {
		o.store.Dispatch(store.SetUploadProgress{Percent: p})
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	o.transition(AwaitingTask)
	if resp == nil || resp.TaskID == "" {
		return nil, fmt.Errorf("upload: server returned no task id")
	}
	log := logging.With(logging.WithTaskID(ctx, resp.TaskID), o.log)
	log.Info().Str("file", filepath.Base(path)).Msg("upload accepted")
	o.store.Dispatch(store.SetUploading{Uploading: false})
	o.store.Dispatch(store.SetProcessing{
		IsProcessing: true,
		Status:       model.TaskQueued,
		Message:      progress.Map(0, resp.Message).Message,
	})

	o.transition(Polling)
	result, err := o.poller.Poll(ctx, resp.TaskID, func(t *model.Task) {
		v := progress.Map(t.Progress, t.Message)
		o.store.Dispatch(store.SetProcessing{
			IsProcessing: true,
			Status:       t.Status,
			Progress:     v.Overall,
			Message:      v.Message,
		})
	})
	if err != nil {
		return nil, err
	}
	if result.DocumentID == "" {
		return nil, fmt.Errorf("task %s completed without a document id", resp.TaskID)
	}

	o.transition(Committing)
	doc := model.Document{
		ID:            result.DocumentID,
		Name:          filepath.Base(path),
		Size:          info.Size(),
		Status:        model.DocumentCompleted,
		Pages:         result.Pages,
		CreatedAt:     o.clock.Now(),
		ExtractedText: result.ExtractedText,
	}
	if doc.Pages == 0 {
		doc.Pages = pages
	}
	o.store.Dispatch(store.AddDocument{Document: doc})
	o.store.Dispatch(store.SetExtractedText{Text: result.ExtractedText})
	o.store.Dispatch(store.ResetProgress{})
	o.refresh(ctx, doc)
	o.store.Dispatch(store.SetNotice{Notice: store.Notice{
		Level:   store.NoticeSuccess,
		Message: fmt.Sprintf("%s processed (%d pages)", doc.Name, doc.Pages),
	}})
	return &doc, nil
}

// refresh reloads the list from the server. Failure keeps the local list.
func (o *Orchestrator) refresh(ctx context.Context, committed model.Document) {
	docs, err := o.client.ListDocuments(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("document list refresh failed; keeping local list")
		return
	}
	found := false
	for _, d := range docs {
		if d.ID == committed.ID {
			found = true
			break
		}
	}
	if !found {
		docs = append([]model.Document{committed}, docs...)
	}
	o.store.Dispatch(store.SetDocuments{Documents: docs})
}

func (o *Orchestrator) fail(err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		metrics.IncUpload("invalid")
	case errors.Is(err, context.Canceled):
		metrics.IncUpload("cancelled")
	default:
		metrics.IncUpload("failed")
	}
	o.log.Error().Err(err).Msg("upload failed")
	o.store.Dispatch(store.ResetProgress{})
	o.store.Dispatch(store.SetNotice{Notice: store.Notice{Level: store.NoticeError, Message: userMessage(err)}})
	o.transition(Failed)
}

func userMessage(err error) string {
	var ve *ValidationError
	var fe *task.FailedError
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &fe):
		return "Processing failed: " + fe.Reason
	case errors.Is(err, task.ErrTimeout):
		return "Processing timed out; the document may still appear later."
	case api.IsTransport(err):
		return "Cannot reach the document service. Check your connection and try again."
	default:
		return strings.TrimPrefix(err.Error(), "upload: ")
	}
}

// validate checks extension, sniffed content type and size, and returns a
// best-effort local page count.
func (o *Orchestrator) validate(path string) (os.FileInfo, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, &ValidationError{Path: path, Reason: "file not found"}
	}
	if info.IsDir() {
		return nil, 0, &ValidationError{Path: path, Reason: "is a directory"}
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, 0, &ValidationError{Path: path, Reason: "only PDF files are accepted"}
	}
	maxSize := o.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if info.Size() == 0 {
		return nil, 0, &ValidationError{Path: path, Reason: "file is empty"}
	}
	if info.Size() > maxSize {
		return nil, 0, &ValidationError{Path: path, Reason: fmt.Sprintf("file exceeds the %d MB limit", maxSize>>20)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &ValidationError{Path: path, Reason: "file is not readable"}
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if ct := http.DetectContentType(head[:n]); ct != "application/pdf" {
		return nil, 0, &ValidationError{Path: path, Reason: fmt.Sprintf("content is %s, not a PDF", ct)}
	}
	pages, err := countPages(f)
	if err != nil {
		if o.StrictPDF {
			return nil, 0, &ValidationError{Path: path, Reason: "PDF structure is unreadable: " + err.Error()}
		}
		o.log.Debug().Err(err).Str("file", filepath.Base(path)).Msg("local page count unavailable")
	}
	return info, pages, nil
}
