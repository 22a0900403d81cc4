package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Newsletter-Bot/internal/status"
)

// maxStatusBodySize caps the status response size (1MB).
const maxStatusBodySize = 1 << 20

// HTTPFetcher polls a newsletter server's status endpoint.
type HTTPFetcher struct {
	httpClient *http.Client
	statusURL  string
}

// NewHTTPFetcher creates a fetcher for the server at baseURL,
// e.g. "http://localhost:5000".
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		statusURL: strings.TrimRight(baseURL, "/") + "/api/status",
	}
}

// FetchStatus retrieves the current scheduler snapshot.
func (f *HTTPFetcher) FetchStatus(ctx context.Context) (status.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.statusURL, nil)
	if err != nil {
		return status.Snapshot{}, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return status.Snapshot{}, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status.Snapshot{}, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBodySize))
	if err != nil {
		return status.Snapshot{}, fmt.Errorf("failed to read status body: %w", err)
	}

	var snap status.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return status.Snapshot{}, fmt.Errorf("failed to parse status body: %w", err)
	}

	return snap, nil
}
