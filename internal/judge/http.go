package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBody = 1 << 20

// PostJSON posts in as JSON and decodes a 2xx response into out. Failures
// come back as *ProviderError; non-2xx responses carry a *StatusError.
func PostJSON(ctx context.Context, client *http.Client, providerID, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewProviderError(ErrorInternal, providerID, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewProviderError(ErrorInternal, providerID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return do(client, req, providerID, out)
}

// GetJSON fetches url and decodes a 2xx response into out.
func GetJSON(ctx context.Context, client *http.Client, providerID, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewProviderError(ErrorInternal, providerID, "build request", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return do(client, req, providerID, out)
}

func do(client *http.Client, req *http.Request, providerID string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return NewProviderError(ErrorProviderOutage, providerID, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return NewProviderError(ErrorProviderOutage, providerID, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewProviderError(categoryForStatus(resp.StatusCode), providerID,
			fmt.Sprintf("status %d", resp.StatusCode), &StatusError{StatusCode: resp.StatusCode, Body: raw})
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError(ErrorContractMismatch, providerID, "decode response", err)
	}
	return nil
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorProviderOutage
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusNotFound:
		return ErrorNotFound
	default:
		return ErrorBadData
	}
}
