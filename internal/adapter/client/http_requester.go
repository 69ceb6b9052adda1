package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const maxErrorBody = 4 << 10

// BackendError is returned when the backend rejects a request, either with a
// non-2xx status or with success=false in the envelope.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inventory backend status %d", e.StatusCode)
	}
	return fmt.Sprintf("inventory backend status %d: %s", e.StatusCode, e.Message)
}

// IsBackendError reports whether err is a rejection from the backend rather
// than a transport failure.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// HTTPRequester implements port.Requester over JSON/HTTP.
type HTTPRequester struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRequester(baseURL string, timeout time.Duration) *HTTPRequester {
	return &HTTPRequester{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRequester) Request(ctx context.Context, method, path string, body any) (*domain.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope domain.Response
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := envelope.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw[:min(len(raw), maxErrorBody)]))
		}
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !envelope.Success {
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return &envelope, nil
}
