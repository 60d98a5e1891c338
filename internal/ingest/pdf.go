package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageImage is one embedded image as it comes out of the document, before
// filtering and hashing.
type PageImage struct {
	PageNumber int
	Data       []byte
	Format     string
}

// Extractor pulls per-page text and embedded images out of document bytes.
type Extractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]string, error)
	ExtractImages(ctx context.Context, data []byte) ([]PageImage, error)
}

// PDFExtractor reads PDFs. Text comes from the content streams; a page whose
// text cannot be decoded yields an empty entry rather than failing the book.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.WarnContext(ctx, "page text extraction failed", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalizePageText(text))
	}
	return pages, nil
}

// normalizePageText collapses the extractor's run-together output into
// line-oriented text the chunker's heading detection can work with.
func normalizePageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
