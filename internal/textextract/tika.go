// Package textextract pulls plain text out of uploaded PDFs with Apache Tika.
package textextract

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"tgmed/internal/structures"
	"time"

	"github.com/pkg/errors"
)

const PDF = "application/pdf"

// ErrUnsupported is returned for anything that is not a PDF.
var ErrUnsupported = errors.New("unsupported content type")

type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// TikaExtractor talks to a Tika server over its /tika endpoint.
type TikaExtractor struct {
	url        string
	httpClient *http.Client
}

func NewTikaExtractor(url string, timeout time.Duration) *TikaExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TikaExtractor{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func NewExtractor(conf *structures.Config) Extractor {
	if !conf.TextExtract.Enabled {
		return NoopExtractor{}
	}
	return NewTikaExtractor(conf.TextExtract.TikaURL, conf.TextExtract.Timeout)
}

func IsSupported(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == PDF
}

func (e *TikaExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if !IsSupported(contentType) {
		return "", errors.Wrapf(ErrUnsupported, "extract %q", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.url+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", PDF)
	req.Header.Set("Accept", "text/plain")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "tika request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("tika server returned status %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}
	return strings.TrimSpace(string(text)), nil
}

// NoopExtractor is used when extraction is disabled.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, []byte, string) (string, error) {
	return "", nil
}
