package chatcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/utils"
)

// FileCache keeps the transcript as JSON in the data directory.
type FileCache struct {
	path string
	log  *zerolog.Logger
}

func NewFileCache(dir string, log *zerolog.Logger) *FileCache {
	if log == nil {
		log = logging.Nop()
	}
	return &FileCache{path: filepath.Join(dir, Key+".json"), log: log}
}

// Path returns the backing file.
func (c *FileCache) Path() string { return c.path }

func (c *FileCache) Load(ctx context.Context) ([]model.ChatMessage, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chat history: %w", err)
	}
	return decode(b, c.log, c.path), nil
}

func (c *FileCache) Save(ctx context.Context, msgs []model.ChatMessage) error {
	if err := utils.EnsureDir(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal chat history: %w", err)
	}
	return utils.SafeWriteFile(c.path, b)
}

func (c *FileCache) Clear(ctx context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove chat history: %w", err)
	}
	return nil
}

func (c *FileCache) Close() error { return nil }
