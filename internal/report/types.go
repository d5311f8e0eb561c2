// Package report renders board reports as JSON, HTML or PDF.
package report

import (
	"errors"
	"fmt"

	"kanban/api/internal/board"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Result contains the rendered report.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no headless Chrome is installed.
	ErrPDFDependencyMissing = errors.New("report pdf dependency missing")
	ErrUnsupportedFormat    = fmt.Errorf("%w: unsupported report format", board.ErrValidation)
)

// ParseFormat maps a query value onto a Format; empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatHTML, FormatPDF:
		return Format(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}
