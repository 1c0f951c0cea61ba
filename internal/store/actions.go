package store

import "github.com/shibinsp/ocrapillm/internal/model"

// Action is a named state transition.
type Action interface{ actionName() string }

type SetUploading struct{ Uploading bool }
type SetUploadProgress struct{ Percent int }
type SetProcessing struct {
	IsProcessing bool
	Status       model.TaskStatus
	Progress     float64
	Message      string
}

// AddDocument prepends the document and makes it current.
type AddDocument struct{ Document model.Document }

// DeleteDocument removes the document, clearing the buffer if it was current.
type DeleteDocument struct{ ID string }

// SetExtractedText replaces the buffer with server text; not modified.
type SetExtractedText struct{ Text string }

// UpdateText replaces the buffer with a user edit.
type UpdateText struct{ Text string }

// SetTextSaved acknowledges a save. With Content set, only that exact text is
// acknowledged, so a save that raced a newer edit leaves the buffer modified.
type SetTextSaved struct{ Content *string }

type AddChatMessage struct{ Message model.ChatMessage }

// SetDocuments replaces the list from a server refresh.
type SetDocuments struct{ Documents []model.Document }

// SelectDocument makes id current and loads its text.
type SelectDocument struct {
	ID   string
	Text string
}

// ClearCurrentDocument drops the selection and buffer, e.g. after the
// server reported the document gone.
type ClearCurrentDocument struct{}

type SetAutoSave struct{ Enabled bool }
type LoadChatHistory struct{ Messages []model.ChatMessage }
type ClearChat struct{}
type SetNotice struct{ Notice Notice }
type ClearNotice struct{}

// ResetProgress clears every in-progress flag.
type ResetProgress struct{}

func (SetUploading) actionName() string         { return "SET_UPLOADING" }
func (SetUploadProgress) actionName() string    { return "SET_UPLOAD_PROGRESS" }
func (SetProcessing) actionName() string        { return "SET_PROCESSING" }
func (AddDocument) actionName() string          { return "ADD_DOCUMENT" }
func (DeleteDocument) actionName() string       { return "DELETE_DOCUMENT" }
func (SetExtractedText) actionName() string     { return "SET_EXTRACTED_TEXT" }
func (UpdateText) actionName() string           { return "UPDATE_TEXT" }
func (SetTextSaved) actionName() string         { return "SET_TEXT_SAVED" }
func (AddChatMessage) actionName() string       { return "ADD_CHAT_MESSAGE" }
func (SetDocuments) actionName() string         { return "SET_DOCUMENTS" }
func (SelectDocument) actionName() string       { return "SELECT_DOCUMENT" }
func (ClearCurrentDocument) actionName() string { return "CLEAR_CURRENT_DOCUMENT" }
func (SetAutoSave) actionName() string          { return "SET_AUTO_SAVE" }
func (LoadChatHistory) actionName() string      { return "LOAD_CHAT_HISTORY" }
func (ClearChat) actionName() string            { return "CLEAR_CHAT" }
func (SetNotice) actionName() string            { return "SET_NOTICE" }
func (ClearNotice) actionName() string          { return "CLEAR_NOTICE" }
func (ResetProgress) actionName() string        { return "RESET_PROGRESS" }

// Name returns the action's wire-style name, for logging.
func Name(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}
