package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithAddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)
	ctx := WithDocumentID(WithTaskID(context.Background(), "t1"), "d1")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["task_id"] != "t1" || line["document_id"] != "d1" {
		t.Fatalf("missing ids in %v", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: "json"}, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn should be written")
	}
}
