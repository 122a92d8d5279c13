package fetcher

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"unirag/internal/domain"
)

// ExtractPDFText returns the plain text of a PDF document. Parser panics on
// malformed input are reported as fetch errors.
func ExtractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf parser panic: %v", domain.ErrFetch, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	return CollapseWhitespace(string(raw)), nil
}
