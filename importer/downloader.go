package importer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/logging"
)

// Download fetches a CSV document over HTTP and parses it
func (p *Parser) Download(ctx context.Context, url string) (*entities.ParseResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	response, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: unexpected status %s", url, response.Status)
	}

	if response.ContentLength > p.maxBytes {
		return nil, fmt.Errorf("%w: %s announces %d bytes, limit is %d", ErrTooLarge, url, response.ContentLength, p.maxBytes)
	}

	result, err := p.ParseReader(ctx, response.Body)
	if err != nil {
		return result, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	logging.Info("CSV downloaded",
		"url", url,
		"rows", result.Rows,
		"valid", len(result.Medications),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
