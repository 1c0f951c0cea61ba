package model

import "time"

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentError      DocumentStatus = "error"
)

// Document is a processed upload as known to the client.
type Document struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Size          int64          `json:"size"`
	Status        DocumentStatus `json:"status"`
	Pages         int            `json:"pages"`
	CreatedAt     time.Time      `json:"created_at"`
	ExtractedText string         `json:"extracted_text,omitempty"`
}

// Page is a single OCR'd page with its text.
type Page struct {
	ID            string `json:"id"`
	PageNumber    int    `json:"pageNumber"`
	ImageURL      string `json:"imageUrl,omitempty"`
	ExtractedText string `json:"extractedText"`
	Validated     bool   `json:"validated"`
}

// DocumentState is the server's coarse processing view of one document.
type DocumentState struct {
	ID         string         `json:"id"`
	Status     DocumentStatus `json:"status"`
	Progress   float64        `json:"progress"`
	TotalPages int            `json:"total_pages"`
}
