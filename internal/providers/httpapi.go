package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chainguard-dev/clog"
)

// postJSON sends body to url and decodes a 200 reply into out. Non-200
// replies become a classified *Error.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return classify(ctx, provider, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return classify(ctx, provider, fmt.Errorf("reading response: %w", err))
	}

	clog.FromContext(ctx).With("provider", provider).
		With("status", httpResp.StatusCode).
		Debug("Completion response received")

	if httpResp.StatusCode != http.StatusOK {
		return statusError(provider, httpResp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return transportError(provider, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}
