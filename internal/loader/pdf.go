package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// loadPDF extracts text from each page of a PDF, preserving 1-based page
// numbers so citations can point back into the source document. Pages whose
// text cannot be extracted are kept as empty pages rather than shifting the
// numbering of the pages after them.
func loadPDF(path string) ([]rag.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &rag.IngestionError{Source: path, Reason: fmt.Errorf("open pdf: %w", err)}
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, &rag.IngestionError{Source: path, Reason: errors.New("pdf has no pages")}
	}

	pages := make([]rag.Page, 0, total)
	for n := 1; n <= total; n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			pages = append(pages, rag.Page{Number: n})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, rag.Page{Number: n})
			continue
		}
		pages = append(pages, rag.Page{Number: n, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
