package store

import "github.com/shibinsp/ocrapillm/internal/model"

// Reduce returns the state after applying a. It performs no I/O and never
// mutates s; unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetUploading:
		s.IsUploading = a.Uploading
		if !a.Uploading {
			s.UploadProgress = 0
		}
	case SetUploadProgress:
		s.UploadProgress = clampInt(a.Percent, 0, 100)
	case SetProcessing:
		s.IsProcessing = a.IsProcessing
		s.Processing = ProcessingStatus{Status: a.Status, Progress: a.Progress, Message: a.Message}
	case ResetProgress:
		s.IsUploading = false
		s.UploadProgress = 0
		s.IsProcessing = false
		s.Processing = ProcessingStatus{}

	case AddDocument:
		docs := make([]model.Document, 0, len(s.Documents)+1)
		docs = append(docs, a.Document)
		for _, d := range s.Documents {
			if d.ID != a.Document.ID {
				docs = append(docs, d)
			}
		}
		s.Documents = docs
		s.CurrentID = a.Document.ID
	case DeleteDocument:
		docs := make([]model.Document, 0, len(s.Documents))
		for _, d := range s.Documents {
			if d.ID != a.ID {
				docs = append(docs, d)
			}
		}
		s.Documents = docs
		if s.CurrentID == a.ID {
			s.CurrentID = ""
			s.ExtractedText = ""
			s.SavedText = ""
		}
	case SetDocuments:
		docs := make([]model.Document, len(a.Documents))
		copy(docs, a.Documents)
		s.Documents = docs
	case SelectDocument:
		s.CurrentID = a.ID
		s.ExtractedText = a.Text
		s.SavedText = a.Text
	case ClearCurrentDocument:
		s.CurrentID = ""
		s.ExtractedText = ""
		s.SavedText = ""

	case SetExtractedText:
		s.ExtractedText = a.Text
		s.SavedText = a.Text
	case UpdateText:
		s.ExtractedText = a.Text
	case SetTextSaved:
		if a.Content == nil {
			s.SavedText = s.ExtractedText
		} else {
			s.SavedText = *a.Content
		}
	case SetAutoSave:
		s.AutoSave = a.Enabled

	case AddChatMessage:
		msgs := make([]model.ChatMessage, len(s.ChatHistory), len(s.ChatHistory)+1)
		copy(msgs, s.ChatHistory)
		s.ChatHistory = append(msgs, a.Message)
	case LoadChatHistory:
		msgs := make([]model.ChatMessage, len(a.Messages))
		copy(msgs, a.Messages)
		s.ChatHistory = msgs
	case ClearChat:
		s.ChatHistory = nil

	case SetNotice:
		n := a.Notice
		s.Notice = &n
	case ClearNotice:
		s.Notice = nil
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
