package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// loadText reads a plain-text or markdown file as a single page 1.
func loadText(path string) ([]rag.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rag.IngestionError{Source: path, Reason: fmt.Errorf("read file: %w", err)}
	}
	return []rag.Page{{Number: 1, Text: strings.TrimSpace(string(data))}}, nil
}
