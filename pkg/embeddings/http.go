package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/folio/pkg/vector"
)

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// PostJSON marshals body, POSTs it to url with the given headers and returns
// the raw response payload. Transport errors and non-2xx statuses are
// reported as vector.ErrProviderUnavailable.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrProviderUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", vector.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", vector.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(payload) > maxErrorBody {
			payload = payload[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: provider returned status %d: %s", vector.ErrProviderUnavailable, resp.StatusCode, string(payload))
	}

	return payload, nil
}
