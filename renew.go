package luxeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// endpointRenewer exchanges the HTTP-only refresh cookie for a new access
// token. It uses the raw transport, never the pipeline, so a 401 here cannot
// recurse into another refresh.
type endpointRenewer struct {
	http     *http.Client
	url      string
	maxBytes int64
}

type renewResponse struct {
	AccessToken string `json:"access_token"`
}

func (r *endpointRenewer) Renew(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, r.maxBytes)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp.StatusCode, body)
	}

	var out renewResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return strings.TrimSpace(out.AccessToken), nil
}
