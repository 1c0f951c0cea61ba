package store

import (
	"reflect"
	"sync"
	"testing"

	"github.com/shibinsp/ocrapillm/internal/model"
)

func seeded() State {
	s := Initial()
	s.Documents = []model.Document{{ID: "a", Name: "a.pdf"}, {ID: "b", Name: "b.pdf"}}
	return s
}

func TestSaveClearsModified(t *testing.T) {
	s := Reduce(seeded(), SetExtractedText{Text: "orig"})
	s = Reduce(s, UpdateText{Text: "x"})
	if !s.Modified() {
		t.Fatalf("edit should mark buffer modified")
	}
	s = Reduce(s, SetTextSaved{})
	if s.Modified() || s.ExtractedText != "x" {
		t.Fatalf("after save: modified=%v buffer=%q", s.Modified(), s.ExtractedText)
	}
}

func TestConditionalSaveKeepsNewerEdit(t *testing.T) {
	s := Reduce(Initial(), SetExtractedText{Text: "v0"})
	s = Reduce(s, UpdateText{Text: "v1"})
	sent := "v1"
	s = Reduce(s, UpdateText{Text: "v2"})
	s = Reduce(s, SetTextSaved{Content: &sent})
	if !s.Modified() {
		t.Fatalf("buffer v2 was never saved and must stay modified")
	}
	s = Reduce(s, UpdateText{Text: "v1"})
	if s.Modified() {
		t.Fatalf("reverting to the acknowledged text is not a modification")
	}
}

func TestAddThenDeleteRestoresList(t *testing.T) {
	before := seeded()
	before.CurrentID = "a"
	d := model.Document{ID: "new", Name: "n.pdf"}
	s := Reduce(before, AddDocument{Document: d})
	if s.CurrentID != "new" || s.Documents[0].ID != "new" || len(s.Documents) != 3 {
		t.Fatalf("add should prepend and select: %+v", s)
	}
	s = Reduce(s, SetExtractedText{Text: "body"})
	s = Reduce(s, DeleteDocument{ID: "new"})
	if !reflect.DeepEqual(s.Documents, before.Documents) {
		t.Fatalf("documents not restored: %+v", s.Documents)
	}
	if s.CurrentID != "" || s.ExtractedText != "" || s.Modified() {
		t.Fatalf("deleting current should clear selection and buffer: %+v", s)
	}
}

func TestDeleteOtherKeepsCurrent(t *testing.T) {
	s := Reduce(seeded(), SelectDocument{ID: "a", Text: "hello"})
	s = Reduce(s, DeleteDocument{ID: "b"})
	if s.CurrentID != "a" || s.ExtractedText != "hello" || len(s.Documents) != 1 {
		t.Fatalf("unexpected state: %+v", s)
	}
}

func TestReduceDoesNotAliasInput(t *testing.T) {
	base := seeded()
	base.ChatHistory = make([]model.ChatMessage, 1, 8)
	base.ChatHistory[0] = model.ChatMessage{ID: "m0"}

	s1 := Reduce(base, AddChatMessage{Message: model.ChatMessage{ID: "m1"}})
	s2 := Reduce(base, AddChatMessage{Message: model.ChatMessage{ID: "m2"}})
	if s1.ChatHistory[1].ID != "m1" || s2.ChatHistory[1].ID != "m2" {
		t.Fatalf("appends must not share backing arrays: %v %v", s1.ChatHistory, s2.ChatHistory)
	}
	if len(base.ChatHistory) != 1 {
		t.Fatalf("input mutated")
	}

	docs := []model.Document{{ID: "x"}}
	s3 := Reduce(base, SetDocuments{Documents: docs})
	docs[0].ID = "changed"
	if s3.Documents[0].ID != "x" {
		t.Fatalf("SetDocuments must copy its input")
	}
}

func TestResetProgressClearsFlags(t *testing.T) {
	s := Reduce(Initial(), SetUploading{Uploading: true})
	s = Reduce(s, SetUploadProgress{Percent: 140})
	if s.UploadProgress != 100 {
		t.Fatalf("upload progress should clamp, got %d", s.UploadProgress)
	}
	s = Reduce(s, SetProcessing{IsProcessing: true, Status: model.TaskProcessing, Progress: 40})
	s = Reduce(s, ResetProgress{})
	if s.IsUploading || s.IsProcessing || s.UploadProgress != 0 || s.Processing.Progress != 0 {
		t.Fatalf("flags not reset: %+v", s)
	}
}

func TestChatAndNotices(t *testing.T) {
	s := Reduce(Initial(), LoadChatHistory{Messages: []model.ChatMessage{{ID: "1"}, {ID: "2"}}})
	s = Reduce(s, AddChatMessage{Message: model.ChatMessage{ID: "3"}})
	if len(s.ChatHistory) != 3 || s.ChatHistory[2].ID != "3" {
		t.Fatalf("chat: %+v", s.ChatHistory)
	}
	s = Reduce(s, ClearChat{})
	if len(s.ChatHistory) != 0 {
		t.Fatalf("chat not cleared")
	}
	s = Reduce(s, SetNotice{Notice: Notice{Level: NoticeWarning, Message: "gone"}})
	if s.Notice == nil || s.Notice.Message != "gone" {
		t.Fatalf("notice: %+v", s.Notice)
	}
	if s = Reduce(s, ClearNotice{}); s.Notice != nil {
		t.Fatalf("notice not cleared")
	}
}

func TestDispatchNotifiesInOrder(t *testing.T) {
	st := New(Initial(), nil)
	var got []string
	unsub := st.Subscribe(func(s State, a Action) {
		got = append(got, Name(a))
		if _, ok := a.(UpdateText); ok {
			// nested dispatch is delivered after the current action
			st.Dispatch(SetTextSaved{})
		}
	})
	st.Dispatch(SetExtractedText{Text: "a"})
	st.Dispatch(UpdateText{Text: "b"})
	unsub()
	st.Dispatch(ClearNotice{})

	want := []string{"SET_EXTRACTED_TEXT", "UPDATE_TEXT", "SET_TEXT_SAVED"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if st.Snapshot().Modified() {
		t.Fatalf("nested save should have been applied")
	}
}

func TestConcurrentDispatchLosesNoUpdates(t *testing.T) {
	st := New(Initial(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Dispatch(AddChatMessage{Message: model.ChatMessage{ID: string(rune('A' + i%26))}})
		}(i)
	}
	wg.Wait()
	if n := len(st.Snapshot().ChatHistory); n != 50 {
		t.Fatalf("expected 50 messages, got %d", n)
	}
}
