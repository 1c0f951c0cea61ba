// Package store holds client state. It changes only through Dispatch,
// which runs a pure reducer.
package store

import (
	"github.com/shibinsp/ocrapillm/internal/model"
)

// NoticeLevel classifies user-visible notices.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message meant for the user, such as a toast in a UI.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// ProcessingStatus is the progress of the task currently being tracked.
type ProcessingStatus struct {
	Status   model.TaskStatus
	Progress float64
	Message  string
}

// State is an immutable snapshot. Reducers never modify slices in place.
type State struct {
	Documents      []model.Document
	CurrentID      string
	IsUploading    bool
	UploadProgress int
	IsProcessing   bool
	Processing     ProcessingStatus

	// ExtractedText is the editor buffer and SavedText the last value the
	// server acknowledged.
	ExtractedText string
	SavedText     string

	AutoSave    bool
	ChatHistory []model.ChatMessage
	Notice      *Notice
}

// Modified reports whether the buffer has unsaved changes.
func (s State) Modified() bool { return s.ExtractedText != s.SavedText }

// CurrentDocument returns the selected document, if any.
func (s State) CurrentDocument() (model.Document, bool) {
	if s.CurrentID == "" {
		return model.Document{}, false
	}
	for _, d := range s.Documents {
		if d.ID == s.CurrentID {
			return d, true
		}
	}
	return model.Document{}, false
}

// Initial returns the empty state with auto-save enabled.
func Initial() State {
	return State{AutoSave: true}
}
