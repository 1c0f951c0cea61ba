package chatcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
)

type mockRedisClient struct {
	data   map[string]string
	getErr error
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) Close() error { return nil }

func transcript() []model.ChatMessage {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []model.ChatMessage{
		{ID: "1", Role: model.RoleUser, Content: "What is the total?", Timestamp: ts},
		{ID: "2", Role: model.RoleAssistant, Content: "42", Timestamp: ts.Add(time.Second)},
	}
}

func TestFileCacheRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(filepath.Join(t.TempDir(), "data"), logging.Nop())

	msgs, err := c.Load(ctx)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("fresh cache: %v %v", msgs, err)
	}
	if err := c.Save(ctx, transcript()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(c.Path()) != Key+".json" {
		t.Fatalf("unexpected path %s", c.Path())
	}
	got, err := c.Load(ctx)
	if err != nil || len(got) != 2 || got[1].Content != "42" {
		t.Fatalf("load: %+v %v", got, err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	if got, _ := c.Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty after clear")
	}
}

func TestFileCacheCorruptLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, logging.Nop())
	if err := os.WriteFile(c.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	msgs, err := c.Load(context.Background())
	if err != nil || len(msgs) != 0 {
		t.Fatalf("corrupt file should load empty, got %v %v", msgs, err)
	}
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	m := &mockRedisClient{data: map[string]string{}}
	c := NewRedisCache(m, logging.Nop())

	if msgs, err := c.Load(ctx); err != nil || len(msgs) != 0 {
		t.Fatalf("miss should be empty: %v %v", msgs, err)
	}
	if err := c.Save(ctx, transcript()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := m.data[Key]; !ok {
		t.Fatalf("transcript not stored under %s", Key)
	}
	got, err := c.Load(ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("load: %v %v", got, err)
	}

	m.data[Key] = "garbage"
	if got, err := c.Load(ctx); err != nil || len(got) != 0 {
		t.Fatalf("corrupt value should load empty: %v %v", got, err)
	}

	_ = c.Clear(ctx)
	if _, ok := m.data[Key]; ok {
		t.Fatalf("clear should delete the key")
	}

	m.getErr = errors.New("connection reset")
	if _, err := c.Load(ctx); err == nil {
		t.Fatalf("transport errors should surface")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "memcached"}); err == nil {
		t.Fatalf("expected error")
	}
	c, err := Open(context.Background(), Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := c.(*FileCache); !ok {
		t.Fatalf("default backend should be file, got %T", c)
	}
}
