// Package parser turns local text files into plain document text for
// saving or page validation.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Parser extracts text from one file format.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (string, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// ErrBinary is returned for files that are neither a known format nor
// valid UTF-8 text.
var ErrBinary = errors.New("file is not text")

// ParseFile picks a parser by file name. Unknown extensions are read as
// plain text.
func ParseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	for _, p := range registry {
		if p.CanParse(path) {
			return p.Parse(data)
		}
	}
	return plainParser{}.Parse(data)
}

func init() {
	Register(plainParser{})
	Register(docxParser{})
}

type plainParser struct{}

func (plainParser) CanParse(filename string) bool {
	switch ext(filename) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Parse normalizes line endings and strips a UTF-8 BOM.
func (plainParser) Parse(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", ErrBinary
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}

func ext(name string) string { return strings.ToLower(filepath.Ext(name)) }
