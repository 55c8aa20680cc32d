package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPReader fetches one kind of reading as JSON from a companion service,
// such as a phone bridge exposing location or health data.
//
// Status mapping:
//   - 200: body decoded into the kind's reading type
//   - 401/403: ErrPermissionDenied
//   - 404/503: ErrUnavailable
type HTTPReader struct {
	stream
	kind   Kind
	url    string
	client *http.Client
}

// NewHTTPReader creates a reader for kind k at url. A zero timeout uses 10s.
func NewHTTPReader(k Kind, url string, timeout time.Duration) *HTTPReader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReader{
		kind:   k,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPReader) Kind() Kind { return r.kind }

func (r *HTTPReader) FetchOnce(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", ErrPermissionDenied, r.kind, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, r.kind, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeReading(r.kind, body)
}

// decodeReading unmarshals body into the reading type for k.
func decodeReading(k Kind, body []byte) (Reading, error) {
	var target Reading
	switch k {
	case KindLocation:
		target = &Location{}
	case KindActivity:
		target = &Activity{}
	case KindHealth:
		target = &Health{}
	case KindDeviceState:
		target = &DeviceState{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return nil, fmt.Errorf("failed to decode %s reading: %w", k, err)
	}
	return target, nil
}
