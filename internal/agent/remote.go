package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/szaher/tutoragent/internal/telemetry"
)

// maxRemoteBody bounds how much of a remote response is read.
const maxRemoteBody = 1 << 20

// Remote delegates each invocation to another agent service speaking the
// same POST /invoke contract.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a delegating agent. A nil client uses http.DefaultClient.
func NewRemote(url string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{url: url, client: client}
}

// Invoke implements Agent. The caller's correlation id is forwarded.
// 4xx answers become client-facing errors; anything else non-2xx is an
// internal failure.
func (r *Remote) Invoke(ctx context.Context, userID string, input, context map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"input":   input,
		"context": context,
	})
	if err != nil {
		return nil, fmt.Errorf("remote agent: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote agent: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := telemetry.CorrelationID(ctx); id != "" {
		req.Header.Set(telemetry.RequestIDHeader, id)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote agent: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("remote agent: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &Error{Status: resp.StatusCode, Detail: remoteDetail(data)}
	default:
		return nil, fmt.Errorf("remote agent: %s returned %d: %s", r.url, resp.StatusCode, remoteDetail(data))
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("remote agent: decode response: %w", err)
	}
	if out, ok := doc["output"].(map[string]any); ok {
		return out, nil
	}
	return doc, nil
}

// remoteDetail prefers a string "detail" field and falls back to the raw body.
func remoteDetail(data []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(body.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(data))
}
