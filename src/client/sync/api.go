package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"monii/src/client/queue"
	"monii/src/models"
)

// Applier is the server contract one intent is replayed against.
type Applier interface {
	CreateTransaction(ctx context.Context, intent queue.PendingIntent) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, intent queue.PendingIntent) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, intent queue.PendingIntent) error
}

// ApplyError tags an apply failure as permanent (validation, not-found,
// forbidden: retrying cannot help) or transient (timeouts, server
// unavailability: retry up to the ceiling).
type ApplyError struct {
	Status    int
	Permanent bool
	Err       error
}

func (e *ApplyError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Status != 0 {
		return fmt.Sprintf("apply failed (%s, status %d): %v", kind, e.Status, e.Err)
	}
	return fmt.Sprintf("apply failed (%s): %v", kind, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a tagged permanent apply failure.
func IsPermanent(err error) bool {
	var ae *ApplyError
	return errors.As(err, &ae) && ae.Permanent
}

// HTTPApplier replays intents against the ledger API. The intent id rides
// the X-Intent-Id header so replays after a lost response are deduplicated
// server-side.
type HTTPApplier struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPApplier(baseURL, token string) *HTTPApplier {
	return &HTTPApplier{BaseURL: baseURL, Token: token, Client: http.DefaultClient}
}

func (a *HTTPApplier) CreateTransaction(ctx context.Context, intent queue.PendingIntent) (*models.Transaction, error) {
	payload := intent.Payload
	payload.ClientIntentID = intent.ID

	var created models.Transaction
	if err := a.do(ctx, http.MethodPost, "/api/transactions", intent.ID, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *HTTPApplier) UpdateTransaction(ctx context.Context, intent queue.PendingIntent) (*models.Transaction, error) {
	var updated models.Transaction
	path := "/api/transactions/" + intent.TransactionID
	if err := a.do(ctx, http.MethodPut, path, intent.ID, intent.Payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (a *HTTPApplier) DeleteTransaction(ctx context.Context, intent queue.PendingIntent) error {
	path := "/api/transactions/" + intent.TransactionID
	return a.do(ctx, http.MethodDelete, path, intent.ID, nil, nil)
}

func (a *HTTPApplier) do(ctx context.Context, method, path, intentID string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &ApplyError{Permanent: true, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return &ApplyError{Permanent: true, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)
	req.Header.Set("X-Intent-Id", intentID)

	resp, err := a.Client.Do(req)
	if err != nil {
		// network failure or timeout
		return &ApplyError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ApplyError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &ApplyError{
		Status:    resp.StatusCode,
		Permanent: permanentStatus(resp.StatusCode),
		Err:       fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
	}
}

// permanentStatus classifies HTTP statuses: request timeouts, rate limits
// and server errors are worth retrying, every other 4xx is not.
func permanentStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return false
	case status >= 500:
		return false
	case status >= 400:
		return true
	default:
		return false
	}
}
