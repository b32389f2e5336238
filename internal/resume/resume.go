// Package resume extracts plain text from uploaded PDF résumés.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF    = errors.New("resume is not a PDF")
	ErrEmptyText = errors.New("no text found in resume")
)

var pdfMagic = []byte("%PDF-")

// ExtractText returns the text of every page with whitespace collapsed.
func ExtractText(data []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return "", ErrNotPDF
	}
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("resume: malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("resume: open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("resume: read text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("resume: read text: %w", err)
	}
	text = strings.Join(strings.Fields(string(raw)), " ")
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
