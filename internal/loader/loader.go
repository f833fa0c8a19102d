// Package loader reads source documents from disk and normalizes them into
// page sequences. PDF files keep their native page boundaries; plain-text
// formats become single-page documents.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// Load reads the document at path and returns it as pages of text. The
// format is chosen by file extension: .pdf is parsed page by page, .txt and
// .md are read whole. Anything unreadable, unsupported, or empty after
// extraction is an IngestionError.
func Load(path string) (rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		pages []rag.Page
		err   error
	)
	switch ext {
	case ".pdf":
		pages, err = loadPDF(path)
	case ".txt", ".md":
		pages, err = loadText(path)
	default:
		return rag.Document{}, &rag.IngestionError{
			Source: path,
			Reason: fmt.Errorf("unsupported file type %q, expected .pdf, .txt, or .md", ext),
		}
	}
	if err != nil {
		return rag.Document{}, err
	}

	if !hasContent(pages) {
		return rag.Document{}, &rag.IngestionError{
			Source: path,
			Reason: errors.New("document contains no extractable text"),
		}
	}

	// The cleaned path is the document identity: two files named manual.pdf
	// in different directories must not share an ID.
	return rag.Document{
		ID:     filepath.Clean(path),
		Source: path,
		Pages:  pages,
	}, nil
}

// hasContent reports whether at least one page holds non-whitespace text.
func hasContent(pages []rag.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
