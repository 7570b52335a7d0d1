// Package reconcile aligns the vector index with the authoritative FAQ source.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warunglabs/tanya/internal/models"
)

// ErrSourceUnavailable is returned when the authoritative source cannot be
// reached or answers with a non-success status.
var ErrSourceUnavailable = errors.New("authoritative source unavailable")

// Source lists the authoritative FAQ dataset the index must converge to.
type Source interface {
	ListAll(ctx context.Context) ([]models.FAQItem, error)
}

// HTTPSource fetches the full FAQ list from an HTTP endpoint with bearer
// token auth and an explicit request timeout.
type HTTPSource struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSource creates a source for url. token may be empty when the
// endpoint needs no auth.
func NewHTTPSource(url, token string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// ListAll fetches every FAQ from the source. Any transport or status
// failure wraps ErrSourceUnavailable.
func (s *HTTPSource) ListAll(ctx context.Context) ([]models.FAQItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: source returned %s", ErrSourceUnavailable, resp.Status)
	}
	var items []models.FAQItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	return items, nil
}
