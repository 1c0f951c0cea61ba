package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
)

// UploadResponse acknowledges a queued OCR task.
type UploadResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Upload posts a PDF as multipart field "file". onProgress, when set,
// receives whole percents 0..100 of bytes handed to the transport; values
// never decrease.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, onProgress func(int)) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read upload source: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	payload := buf.Bytes()

	var wrap func(io.Reader) io.Reader
	if onProgress != nil {
		pt := &progressTracker{total: int64(len(payload)), fn: onProgress, last: -1}
		wrap = func(r io.Reader) io.Reader { return &progressReader{r: r, t: pt} }
	}
	resp, err := c.do(ctx, c.uploadClient, http.MethodPost, "/upload/", payload, mw.FormDataContentType(), nil, wrap)
	if err != nil {
		return nil, err
	}
	var out UploadResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if out.TaskID == "" {
		return nil, fmt.Errorf("upload response missing task_id")
	}
	if onProgress != nil {
		onProgress(100)
	}
	return &out, nil
}

type progressTracker struct {
	mu    sync.Mutex
	total int64
	sent  int64
	last  int
	fn    func(int)
}

func (p *progressTracker) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent += int64(n)
	pct := 100
	if p.total > 0 {
		pct = int(p.sent * 100 / p.total)
	}
	if pct > 100 {
		pct = 100
	}
	if pct > p.last {
		p.last = pct
		p.fn(pct)
	}
}

type progressReader struct {
	r io.Reader
	t *progressTracker
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.t.add(n)
	}
	return n, err
}
