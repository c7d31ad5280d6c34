package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/xxxsen/pdfqa/internal/model"
)

// Extract returns the cleaned text of every page, numbered from 1. Pages
// without a text layer come back with empty text.
func Extract(data []byte) (pages []model.Page, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages = make([]model.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, model.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, model.Page{Number: i, Text: Clean(text)})
	}
	return pages, nil
}

// Clean collapses every whitespace run into a single space.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HasText reports whether any page carries at least minChars characters
// besides surrounding whitespace.
func HasText(pages []model.Page, minChars int) bool {
	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text != "" && len([]rune(text)) >= minChars {
			return true
		}
	}
	return false
}
