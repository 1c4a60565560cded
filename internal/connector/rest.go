package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/transbank-api/internal/result"
)

// REST posts JSON payloads to BaseURL/operation and decodes JSON answers.
// Numbers are kept as json.Number so response codes and amounts survive intact.
type REST struct {
	BaseURL    string
	HTTPClient *http.Client
	Header     http.Header
	Logger     zerolog.Logger
}

// NewREST creates a REST connector. A nil client gets a default with a timeout.
func NewREST(baseURL string, client *http.Client, logger zerolog.Logger) *REST {
	return &REST{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: defaultHTTPClient(client),
		Header:     http.Header{},
		Logger:     logger,
	}
}

// Call implements Connector.
func (r *REST) Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rest: encoding %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rest: creating %s request: %w", operation, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: reading %s response: %w", operation, err)
	}
	r.Logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("rest call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	out := result.Payload{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("rest: decoding %s response: %w", operation, err)
	}
	return out, nil
}
