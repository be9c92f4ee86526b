// Package pdftext downloads a PDF and extracts its plain text for prompt
// construction. Extraction is best effort: scanned or malformed PDFs yield
// an error the caller is expected to tolerate.
package pdftext

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Extractor fetches and reads PDFs.
type Extractor struct {
	http *http.Client
}

// NewExtractor creates an Extractor with a generous download timeout.
func NewExtractor() *Extractor {
	return &Extractor{
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// NewExtractorWithClient creates an Extractor using the given http.Client.
func NewExtractorWithClient(hc *http.Client) *Extractor {
	return &Extractor{http: hc}
}

// FromURL downloads the PDF at url into a temp file and returns its plain
// text, reading at most maxPages pages and truncating to maxChars runes.
// Zero values disable the respective limit.
func (e *Extractor) FromURL(ctx context.Context, url string, maxPages, maxChars int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create request")
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "pdftext: download")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("pdftext: unexpected status %d for %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp("", "paperflow-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", eris.Wrap(err, "pdftext: write temp file")
	}

	text, err := fromFile(tmp.Name(), maxPages)
	if err != nil {
		return "", err
	}

	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}

	zap.L().Debug("pdftext: extracted text",
		zap.String("url", url),
		zap.Int("chars", len(text)))
	return text, nil
}

func fromFile(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "pdftext: open pdf")
	}
	defer f.Close()

	pages := r.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var text string
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// Partial text is still useful for scoring.
			continue
		}
		text += content + "\n"
	}

	return text, nil
}
