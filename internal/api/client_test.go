package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/model"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// hangup drops the connection without writing a response.
func hangup(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Errorf("response writer does not support hijacking")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Errorf("hijack: %v", err)
		return
	}
	_ = conn.Close()
}

func newTestClient(baseURL string) *Client {
	fc := clock.NewFake(time.Unix(0, 0))
	fc.AutoAdvance = true
	return NewClient(Options{BaseURL: baseURL, Clock: fc})
}

func TestGetRetriesTransportFailureThenSucceeds(t *testing.T) {
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			hangup(t, w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy"})
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != "healthy" {
		t.Fatalf("status = %q", h.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hangup(t, w)
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, err := c.ListDocuments(context.Background())
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %T %v", err, err)
	}
	if got := atomic.LoadInt32(&calls); got != DefaultRetryAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultRetryAttempts, got)
	}
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"database offline"}`))
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, err := c.ListDocuments(context.Background())
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServerError, got %T %v", err, err)
	}
	if se.Message != "database offline" {
		t.Fatalf("message = %q", se.Message)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestPostIsNotRetried(t *testing.T) {
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hangup(t, w)
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	err := c.SaveDocument(context.Background(), "d1", "x", SaveAuto)
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %T %v", err, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer s.Close()
	defer close(release)

	fc := clock.NewFake(time.Unix(0, 0))
	fc.AutoAdvance = true
	c := NewClient(Options{BaseURL: s.URL, HTTPTimeout: 50 * time.Millisecond, RetryMaxAttempts: 1, Clock: fc})
	_, err := c.DocumentContent(context.Background(), "d1")
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %T %v", err, err)
	}
}

func TestNotFoundIsTyped(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Document not found"}`))
	}))
	defer s.Close()

	err := newTestClient(s.URL).SaveDocument(context.Background(), "gone", "x", SaveManual)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %T %v", err, err)
	}
	if StatusCode(err) != 404 {
		t.Fatalf("status = %d", StatusCode(err))
	}
}

func TestOtherStatusPassesThroughWithBody(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "srv-42")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"field required"},{"msg":"bad type"}]}`))
	}))
	defer s.Close()

	_, err := newTestClient(s.URL).DocumentContent(context.Background(), "d1")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if IsNotFound(err) {
		t.Fatalf("418 must not be classified as not found")
	}
	if ae.StatusCode != http.StatusTeapot || !strings.Contains(string(ae.Body), "field required") {
		t.Fatalf("unexpected error: %+v", ae)
	}
	if ae.Message != "field required; bad type" {
		t.Fatalf("message = %q", ae.Message)
	}
	if ae.RequestID != "srv-42" {
		t.Fatalf("request id = %q", ae.RequestID)
	}
}

func TestUnreachableIsNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = newTestClient("http://" + addr).Health(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %T %v", err, err)
	}
}

func TestCancelledContextIsReturnedAsIs(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := newTestClient(s.URL).Health(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUploadReportsMonotonicProgress(t *testing.T) {
	var srvMu sync.Mutex
	var gotName string
	var gotLen int
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload/" {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		srvMu.Lock()
		gotName, gotLen = hdr.Filename, len(b)
		srvMu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"task_id": "t1", "status": "uploaded", "message": "ok"})
	}))
	defer s.Close()

	data := strings.Repeat("x", 256<<10)
	var mu sync.Mutex
	var seen []int
	resp, err := newTestClient(s.URL).Upload(context.Background(), "scan.pdf", strings.NewReader(data), func(p int) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.TaskID != "t1" {
		t.Fatalf("task id = %q", resp.TaskID)
	}
	srvMu.Lock()
	defer srvMu.Unlock()
	if gotName != "scan.pdf" || gotLen != len(data) {
		t.Fatalf("server saw %q with %d bytes", gotName, gotLen)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("progress must end at 100: %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress decreased: %v", seen)
		}
	}
}

func TestUploadWithoutTaskIDFails(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer s.Close()
	if _, err := newTestClient(s.URL).Upload(context.Background(), "a.pdf", strings.NewReader("%PDF"), nil); err == nil {
		t.Fatalf("expected error for missing task_id")
	}
}

func TestTaskStatusDecoding(t *testing.T) {
	bodies := map[string]string{
		"/task-status/q":    `{"task_id":"q","status":"uploaded"}`,
		"/task-status/p":    `{"task_id":"p","status":"processing","progress":35,"status_message":"Extracting text"}`,
		"/task-status/c":    `{"task_id":"c","status":"completed","progress":80,"result":{"document_id":"d1","extracted_text":"Hello","pages":2}}`,
		"/task-status/f":    `{"task_id":"f","status":"failed","error":"bad scan"}`,
		"/task-status/over": `{"task_id":"over","status":"processing","progress":140}`,
	}
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(b))
	}))
	defer s.Close()
	c := newTestClient(s.URL)
	ctx := context.Background()

	q, err := c.TaskStatus(ctx, "q")
	if err != nil || q.Status != "queued" || q.Progress != 5 {
		t.Fatalf("queued: %+v %v", q, err)
	}
	p, _ := c.TaskStatus(ctx, "p")
	if p.Progress != 35 || p.Message != "Extracting text" {
		t.Fatalf("processing: %+v", p)
	}
	done, _ := c.TaskStatus(ctx, "c")
	if done.Progress != 100 || done.Result == nil || done.Result.DocumentID != "d1" || done.Result.ExtractedText != "Hello" {
		t.Fatalf("completed: %+v", done)
	}
	f, _ := c.TaskStatus(ctx, "f")
	if f.Status != "failed" || f.Error != "bad scan" {
		t.Fatalf("failed: %+v", f)
	}
	over, _ := c.TaskStatus(ctx, "over")
	if over.Progress != 100 {
		t.Fatalf("progress should clamp, got %v", over.Progress)
	}
	if _, err := c.TaskStatus(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListDocumentsAcceptsNaiveTimestamps(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"d1","filename":"a.pdf","size":10,"status":"Completed","pages":3,"created_at":"2024-05-01T10:20:30.123456"},
			{"id":"d2","name":"b.pdf","size":20,"status":"processing","pages":null,"created_at":"2024-05-02T08:00:00Z"}
		]`))
	}))
	defer s.Close()

	docs, err := newTestClient(s.URL).ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Name != "a.pdf" || docs[0].Status != "completed" || docs[0].Pages != 3 {
		t.Fatalf("doc0: %+v", docs[0])
	}
	if docs[0].CreatedAt.Year() != 2024 || docs[0].CreatedAt.Second() != 30 {
		t.Fatalf("doc0 created_at: %v", docs[0].CreatedAt)
	}
	if docs[1].Pages != 0 || docs[1].CreatedAt.Day() != 2 {
		t.Fatalf("doc1: %+v", docs[1])
	}
}

func TestChatSendsHistoryAndRoutesAll(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var lastHistory int
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		lastHistory = len(req.ChatHistory)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"response":"echo: ` + req.Message + `"}`))
	}))
	defer s.Close()
	c := newTestClient(s.URL)

	out, err := c.Chat(context.Background(), "", "hi", nil)
	if err != nil || out != "echo: hi" {
		t.Fatalf("chat all: %q %v", out, err)
	}
	hist := []model.ChatMessage{
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleAssistant, Content: "oops", Error: true},
	}
	if _, err := c.Chat(context.Background(), "d1", "again", hist); err != nil {
		t.Fatalf("chat doc: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if paths[0] != "/chat/all" || paths[1] != "/chat/d1" {
		t.Fatalf("paths = %v", paths)
	}
	if lastHistory != 1 {
		t.Fatalf("error messages must not be sent as history, got %d entries", lastHistory)
	}
}

func TestExportUsesContentDisposition(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "docx" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", `attachment; filename="report.docx"`)
		_, _ = w.Write([]byte("PK..."))
	}))
	defer s.Close()

	ex, err := newTestClient(s.URL).Export(context.Background(), "d1", "docx")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ex.Filename != "report.docx" || string(ex.Data) != "PK..." {
		t.Fatalf("unexpected export: %+v", ex)
	}
}

func TestOversizedBodyFailsWithoutRetry(t *testing.T) {
	var hits int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(strings.Repeat("x", 16+int(n%2))))
	}))
	defer s.Close()
	c := newTestClient(s.URL)
	c.maxBody = 16

	// first reply is 17 bytes
	_, err := c.Do(context.Background(), http.MethodGet, "/big", nil, nil)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("oversized reply must not be retried, got %d requests", n)
	}

	// second reply is exactly at the limit
	body, err := c.Do(context.Background(), http.MethodGet, "/big", nil, nil)
	if err != nil || len(body) != 16 {
		t.Fatalf("body at the limit: len=%d err=%v", len(body), err)
	}
}

func TestClampPercent(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{math.NaN(), 0},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
		{-3, 0},
		{42.5, 42.5},
		{250, 100},
	}
	for _, tc := range cases {
		if got := clampPercent(tc.in); got != tc.want {
			t.Fatalf("clampPercent(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
