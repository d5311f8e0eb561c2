package report

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFOptions controls how ChromeRenderer prints a page. Sizes are in inches.
type PDFOptions struct {
	PaperWidth  float64
	PaperHeight float64
	Margin      float64
	Timeout     time.Duration
	// Browsers are tried in order; the first one on PATH is used.
	Browsers []string
}

// DefaultPDFOptions prints US Letter with 0.6in margins.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PaperWidth:  8.5,
		PaperHeight: 11,
		Margin:      0.6,
		Timeout:     30 * time.Second,
		Browsers:    []string{"chromium-browser", "chromium", "google-chrome"},
	}
}

// ChromePDF renders with DefaultPDFOptions.
func ChromePDF(ctx context.Context, html string) ([]byte, error) {
	return ChromeRenderer(DefaultPDFOptions())(ctx, html)
}

// ChromeRenderer returns a PDFRenderer that prints through headless Chrome.
func ChromeRenderer(opts PDFOptions) PDFRenderer {
	return func(ctx context.Context, html string) ([]byte, error) {
		browser, err := findBrowser(opts.Browsers)
		if err != nil {
			return nil, err
		}
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(browser),
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...)
		defer cancelAlloc()
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()

		var out []byte
		printer := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(opts.PaperWidth).
			WithPaperHeight(opts.PaperHeight).
			WithMarginTop(opts.Margin).
			WithMarginBottom(opts.Margin).
			WithMarginLeft(opts.Margin).
			WithMarginRight(opts.Margin)
		err = chromedp.Run(tabCtx,
			chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(html)),
			chromedp.WaitReady("body"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				data, _, err := printer.Do(ctx)
				out = data
				return err
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("print board report: %w", err)
		}
		return out, nil
	}
}

func findBrowser(names []string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s on PATH", ErrPDFDependencyMissing, strings.Join(names, ", "))
}

// percentEncodeForDataURL escapes every byte outside the RFC 3986 unreserved
// set. Unlike url.QueryEscape it writes spaces as %20.
func percentEncodeForDataURL(s string) string {
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, len(s)*3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			out = append(out, c)
			continue
		}
		out = append(out, '%', hex[c>>4], hex[c&0x0f])
	}
	return string(out)
}

func unreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// sanitizeFilename reduces title to at most 50 ASCII letters, digits, '-' and
// '_', turning spaces into '-'.
func sanitizeFilename(title string) string {
	const maxLen = 50
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '-'
		case r < 0x80 && (unreserved(byte(r)) && r != '.' && r != '~'):
			return r
		default:
			return -1
		}
	}, title)
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	if name == "" {
		return "board"
	}
	return name
}
