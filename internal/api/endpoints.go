package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shibinsp/ocrapillm/internal/model"
)

// SaveType distinguishes background saves from explicit ones.
type SaveType string

const (
	SaveAuto   SaveType = "auto"
	SaveManual SaveType = "manual"
)

// taskStatusWire mirrors GET /task-status/{id}.
type taskStatusWire struct {
	TaskID        string            `json:"task_id"`
	Status        string            `json:"status"`
	Progress      *float64          `json:"progress"`
	StatusMessage string            `json:"status_message"`
	Message       string            `json:"message"`
	Result        *model.TaskResult `json:"result"`
	Error         string            `json:"error"`
}

type documentWire struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Filename  string   `json:"filename"`
	Size      int64    `json:"size"`
	Status    string   `json:"status"`
	Pages     *int     `json:"pages"`
	CreatedAt wireTime `json:"created_at"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message     string         `json:"message"`
	ChatHistory []historyEntry `json:"chat_history"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type saveRequest struct {
	Content  string   `json:"content"`
	SaveType SaveType `json:"save_type"`
}

// HealthStatus is the reply of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Export is a downloaded rendition of a document.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

func docPath(id string, rest ...string) string {
	p := "/documents/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// TaskStatus fetches one observation of a remote task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*model.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id cannot be empty")
	}
	var w taskStatusWire
	if err := c.doJSON(ctx, http.MethodGet, "/task-status/"+url.PathEscape(taskID), nil, &w); err != nil {
		return nil, err
	}
	status := model.NormalizeTaskStatus(w.Status)
	t := &model.Task{
		ID:      taskID,
		Status:  status,
		Message: w.StatusMessage,
		Result:  w.Result,
		Error:   w.Error,
	}
	if t.Message == "" {
		t.Message = w.Message
	}
	if w.Progress != nil {
		t.Progress = clampPercent(*w.Progress)
	} else {
		t.Progress = status.EstimatedProgress()
	}
	if status == model.TaskCompleted {
		t.Progress = 100
	}
	return t, nil
}

// ListDocuments returns all documents, most recent first as served.
func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var ws []documentWire
	if err := c.doJSON(ctx, http.MethodGet, "/documents/", nil, &ws); err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(ws))
	for _, w := range ws {
		d := model.Document{
			ID:        w.ID,
			Name:      w.Name,
			Size:      w.Size,
			Status:    model.DocumentStatus(strings.ToLower(w.Status)),
			CreatedAt: w.CreatedAt.Time,
		}
		if d.Name == "" {
			d.Name = w.Filename
		}
		if w.Pages != nil {
			d.Pages = *w.Pages
		}
		out = append(out, d)
	}
	return out, nil
}

// DocumentContent returns the current extracted text of a document.
func (c *Client) DocumentContent(ctx context.Context, id string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := c.doJSON(ctx, http.MethodGet, docPath(id, "content"), nil, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// DocumentStatus returns the coarse server-side processing state.
func (c *Client) DocumentStatus(ctx context.Context, id string) (*model.DocumentState, error) {
	var out model.DocumentState
	if err := c.doJSON(ctx, http.MethodGet, docPath(id, "status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveDocument upserts the latest text. Unknown ids fail with *NotFoundError.
func (c *Client) SaveDocument(ctx context.Context, id, content string, saveType SaveType) error {
	if saveType == "" {
		saveType = SaveManual
	}
	return c.doJSON(ctx, http.MethodPost, docPath(id, "auto-save"), saveRequest{Content: content, SaveType: saveType}, nil)
}

// DeleteDocument removes a document server-side.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, docPath(id), nil, nil)
}

// Chat asks about one document, or about all of them when docID is empty.
func (c *Client) Chat(ctx context.Context, docID, message string, history []model.ChatMessage) (string, error) {
	path := "/chat/all"
	if docID != "" {
		path = "/chat/" + url.PathEscape(docID)
	}
	req := chatRequest{Message: message, ChatHistory: make([]historyEntry, 0, len(history))}
	for _, m := range history {
		if m.Error {
			continue
		}
		req.ChatHistory = append(req.ChatHistory, historyEntry{Role: m.Role, Content: m.Content})
	}
	var out chatResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// ChatAll asks about every document at once.
func (c *Client) ChatAll(ctx context.Context, message string, history []model.ChatMessage) (string, error) {
	return c.Chat(ctx, "", message, history)
}

// ChatHistory returns the server-side transcript stored for a document.
func (c *Client) ChatHistory(ctx context.Context, docID string) ([]model.ChatMessage, error) {
	var ws []struct {
		Role      string   `json:"role"`
		Content   string   `json:"content"`
		Timestamp wireTime `json:"timestamp"`
	}
	if err := c.doJSON(ctx, http.MethodGet, docPath(docID, "chat"), nil, &ws); err != nil {
		return nil, err
	}
	out := make([]model.ChatMessage, 0, len(ws))
	for i, w := range ws {
		out = append(out, model.ChatMessage{
			ID:        fmt.Sprintf("%s-%d", docID, i),
			Role:      w.Role,
			Content:   w.Content,
			Timestamp: w.Timestamp.Time,
		})
	}
	return out, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads a document as txt or docx.
func (c *Client) Export(ctx context.Context, id, format string) (*Export, error) {
	if format == "" {
		format = "txt"
	}
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, docPath(id, "export"), nil, "",
		&RequestOptions{Query: url.Values{"format": {format}}}, nil)
	if err != nil {
		return nil, err
	}
	out := &Export{
		Filename:    id + "." + format,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        resp.Body,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			out.Filename = params["filename"]
		}
	}
	return out, nil
}

// Pages lists the OCR'd pages of a document.
func (c *Client) Pages(ctx context.Context, id string) ([]model.Page, error) {
	var out []model.Page
	if err := c.doJSON(ctx, http.MethodGet, docPath(id, "pages"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidatePage stores reviewed text for a single page.
func (c *Client) ValidatePage(ctx context.Context, docID, pageID, text string) error {
	body := struct {
		ValidatedText string `json:"validated_text"`
	}{text}
	return c.doJSON(ctx, http.MethodPost, docPath(docID, "pages", url.PathEscape(pageID), "validate"), body, nil)
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// wireTime accepts RFC 3339 as well as the naive ISO timestamps Python's
// isoformat() produces.
type wireTime struct{ time.Time }

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		// null or non-string: leave zero
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
