package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is the shared HTTP plumbing for upstream adapters.
type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newHTTPClient(baseURL, apiKey string, timeout time.Duration) *httpClient {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// apiError represents a non-2xx response from an upstream API.
type apiError struct {
	StatusCode int
	Body       []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("upstream api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// kind maps the HTTP status onto a failure classification.
func (e *apiError) kind() FailureKind {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	default:
		return KindNetwork
	}
}

// getJSON performs a GET and decodes the response into result.
func (c *httpClient) getJSON(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &apiError{StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// classify converts a transport/decode error into a Result failure.
func classify(provider string, err error) Result {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return failure(provider, apiErr.kind(), err)
	}
	// JSON decode errors and transport errors both land here; decode errors
	// are marked malformed so the router can tell them apart in logs.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return failure(provider, KindMalformed, err)
	}
	return failure(provider, KindNetwork, err)
}
