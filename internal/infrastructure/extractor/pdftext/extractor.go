package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of textbook PDFs page by page, for corpus
// preparation.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractText returns the text of every page, in page order. Pages whose
// content cannot be decoded are skipped; extraction fails only when the file
// itself is unreadable.
func (e *Extractor) ExtractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}

	out := buf.String()
	if out == "" {
		return "", fmt.Errorf("pdf %s contains no extractable text", path)
	}
	return out, nil
}
