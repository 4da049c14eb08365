// Package document reads prompt files from disk.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	extension = ".md"

	sniffSize        = 512
	nonPrintableRate = 0.3
)

var (
	// ErrUnreadable is returned when a path cannot be read.
	ErrUnreadable = errors.New("document unreadable")

	// ErrBinary is returned for files that do not look like text.
	ErrBinary = errors.New("document is not text")

	// ErrNoDocuments is returned when a directory holds no documents.
	ErrNoDocuments = errors.New("no documents found")

	bom = []byte{0xEF, 0xBB, 0xBF}
)

// Document is the text of one prompt file.
type Document struct {
	Path string
	Text string
}

// Read loads the file at path. The returned path is absolute.
func Read(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}

	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	b = bytes.TrimPrefix(b, bom)
	if isBinary(b) {
		return nil, fmt.Errorf("%w: %s", ErrBinary, abs)
	}

	return &Document{Path: abs, Text: string(b)}, nil
}

// Scan lists the .md files directly inside dir as sorted absolute paths.
// The extension match ignores case.
func Scan(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, dir, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), extension) {
			paths = append(paths, filepath.Join(abs, e.Name()))
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, abs)
	}

	sort.Strings(paths)
	return paths, nil
}

// isBinary looks for NUL bytes or a high share of control and invalid
// UTF-8 lead bytes in the first 512 bytes.
func isBinary(b []byte) bool {
	if len(b) > sniffSize {
		b = b[:sniffSize]
	}
	if len(b) == 0 {
		return false
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, c := range b {
		switch {
		case c < 32 && c != '\t' && c != '\n' && c != '\r':
			nonPrintable++
		case c > 127 && c&0xC0 != 0x80:
			if c&0xE0 != 0xC0 && c&0xF0 != 0xE0 && c&0xF8 != 0xF0 {
				nonPrintable++
			}
		}
	}
	return float64(nonPrintable)/float64(len(b)) > nonPrintableRate
}
