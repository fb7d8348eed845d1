package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPages returns the plain text of every page of a PDF, 1-based.
// Pages that fail to extract are skipped. Null bytes are stripped here:
// the JSON serializer downstream rejects them.
func ExtractPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Page, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		pages = append(pages, Page{Number: i, Text: SanitizeText(text)})
	}

	return pages, nil
}

// SanitizeText removes null bytes from extracted text.
func SanitizeText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
