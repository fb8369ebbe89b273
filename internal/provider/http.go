package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payvost/pkg/errors"
)

// restClient is the JSON-over-HTTPS client shared by the REST adapters.
type restClient struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
}

func newRESTClient(name, baseURL, secretKey string, timeout time.Duration) restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return restClient{
		name:      name,
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProviderRequest, fmt.Sprintf("%s: %v", c.name, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return errors.Wrap(errors.ErrProviderRequest, fmt.Sprintf("%s returned status %d: %s", c.name, resp.StatusCode, truncate(data, 200)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(errors.ErrProviderRequest, fmt.Sprintf("%s: invalid response: %v", c.name, err))
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
