package model

import "strings"

type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// NormalizeTaskStatus maps the server's wire values onto the four client
// states. The backend reports freshly accepted jobs as "uploaded".
func NormalizeTaskStatus(s string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "uploaded", "pending", "":
		return TaskQueued
	case "processing", "running":
		return TaskProcessing
	case "completed", "done", "success":
		return TaskCompleted
	case "failed", "error":
		return TaskFailed
	default:
		return TaskProcessing
	}
}

// Terminal reports whether no further transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// EstimatedProgress is used when the server omits a numeric progress.
func (s TaskStatus) EstimatedProgress() float64 {
	switch s {
	case TaskCompleted:
		return 100
	case TaskProcessing:
		return 50
	case TaskQueued:
		return 5
	default:
		return 0
	}
}

// TaskResult is the payload of a completed task.
type TaskResult struct {
	DocumentID       string `json:"document_id"`
	ExtractedText    string `json:"extracted_text"`
	Pages            int    `json:"pages"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
}

// Task is one observation of a remote OCR job.
type Task struct {
	ID       string
	Status   TaskStatus
	Progress float64
	Message  string
	Result   *TaskResult
	Error    string
}
