package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kanban/api/internal/board"
)

// PDFRenderer turns an HTML page into PDF bytes.
type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

type Service struct {
	pdf PDFRenderer
	now func() time.Time
}

// NewService creates a report service. A nil pdf renderer uses ChromePDF.
func NewService(pdf PDFRenderer) *Service {
	if pdf == nil {
		pdf = ChromePDF
	}
	return &Service{pdf: pdf, now: time.Now}
}

// Render summarizes b as of now and encodes it in format.
func (s *Service) Render(ctx context.Context, b board.Board, format Format) (*Result, error) {
	summary := board.Summarize(b, s.now().UTC())
	name := sanitizeFilename(b.Title) + "-report"

	switch format {
	case FormatJSON, "":
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("encode summary: %w", err)
		}
		return &Result{Data: data, Filename: name + ".json", MimeType: "application/json"}, nil
	case FormatHTML, FormatPDF:
		html, err := RenderHTML(NewTemplateData(b, summary))
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		if format == FormatHTML {
			return &Result{Data: []byte(html), Filename: name + ".html", MimeType: "text/html; charset=utf-8"}, nil
		}
		pdf, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: pdf, Filename: name + ".pdf", MimeType: "application/pdf"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
