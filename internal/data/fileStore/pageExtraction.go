package fileStore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = 10 * time.Second

type rawPage struct {
	Number  int
	Content string
}

func extractPDF(ctx context.Context, path string) ([]rawPage, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	logger.Debug("extracting pdf", "path", path, "pages", numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(ctx, page)
		if err != nil {
			// one unreadable page should not sink the document
			logger.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}
		pages = append(pages, rawPage{Number: i, Content: content})
	}
	return pages, nil
}

// extractDocument reads .docx, .odt and .rtf files. Everything lands on one page.
func extractDocument(path string) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document: %w", err)
	}
	return []rawPage{{Number: 1, Content: text}}, nil
}

func extractPlainText(path string) ([]rawPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []rawPage{{Number: 1, Content: string(data)}}, nil
}

// protectExtract bounds a single page; the pdf library can spin on malformed content streams.
func protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(pageExtractTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", errors.New("page extraction timed out")
	}
}
