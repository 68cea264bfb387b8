package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/docsage/docsage/internal/core"
)

// DocconvExtractor extracts plain text from document bytes with docconv.
// For PDFs, page texts come back concatenated in page order; downstream
// chunking does not rely on page boundaries.
type DocconvExtractor struct {
	useReadability bool
}

var _ core.Extractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{useReadability: false}
}

func (e *DocconvExtractor) Text(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", core.ErrEmptyDocument
	}
	return text, nil
}
