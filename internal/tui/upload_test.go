package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/store"
)

func TestViewShowsUploadThenStages(t *testing.T) {
	v := NewUploadView("scan.pdf", nil)
	s := store.Initial()
	s.IsUploading = true
	s.UploadProgress = 40
	v.Update(stateMsg(s))
	out := v.View()
	if !strings.Contains(out, "Processing scan.pdf") || !strings.Contains(out, " 40%") {
		t.Fatalf("upload view:\n%s", out)
	}

	s.IsUploading = false
	s.IsProcessing = true
	s.Processing = store.ProcessingStatus{Status: model.TaskProcessing, Progress: 35}
	v.Update(stateMsg(s))
	out = v.View()
	if !strings.Contains(out, "✓ Uploading document") || !strings.Contains(out, "✓ Analyzing layout") {
		t.Fatalf("earlier stages should be complete:\n%s", out)
	}
	if !strings.Contains(out, "▸ Extracting text (OCR)") {
		t.Fatalf("extracting should be active:\n%s", out)
	}
	if !strings.Contains(out, "· Finalizing") {
		t.Fatalf("finalizing should be pending:\n%s", out)
	}
}

func TestDoneQuitsAndReportsResult(t *testing.T) {
	v := NewUploadView("scan.pdf", nil)
	_, cmd := v.Update(doneMsg{doc: &model.Document{ID: "d1", Pages: 3}})
	if cmd == nil {
		t.Fatalf("done should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if out := v.View(); !strings.Contains(out, "Document d1 ready (3 pages)") {
		t.Fatalf("done view:\n%s", out)
	}

	v = NewUploadView("scan.pdf", nil)
	v.Update(doneMsg{err: errors.New("task t1 failed: bad scan")})
	if out := v.View(); !strings.Contains(out, "✗ task t1 failed: bad scan") {
		t.Fatalf("error view:\n%s", out)
	}
}

func TestCancelKey(t *testing.T) {
	cancelled := false
	v := NewUploadView("scan.pdf", func() { cancelled = true })
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Fatalf("q should cancel the upload")
	}
}

func TestBar(t *testing.T) {
	if got := bar(0.5, 10); got != "["+strings.Repeat("█", 5)+strings.Repeat("░", 5)+"]" {
		t.Fatalf("bar = %q", got)
	}
	if got := bar(2, 4); got != "[████]" {
		t.Fatalf("bar should clamp, got %q", got)
	}
}
