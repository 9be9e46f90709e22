package httpapi

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

	"github.com/velmie/smsqueue"
)

// ErrWorkerKeyRejected is returned when the server refuses the configured worker key.
var ErrWorkerKeyRejected = errors.New("httpapi: worker key rejected")

// ErrBaseURLRequired is returned when NewClient is given an empty base URL.
var ErrBaseURLRequired = errors.New("httpapi: base url is required")

// Client talks to a Server on behalf of a remote worker.
type Client struct {
	baseURL   string
	workerKey string
	http      *http.Client
}

var (
	_ smsqueue.Claimer  = (*Client)(nil)
	_ smsqueue.Reporter = (*Client)(nil)
)

// NewClient constructs a Client. A nil httpClient uses a client with a 10s timeout.
func NewClient(baseURL, workerKey string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{baseURL: baseURL, workerKey: workerKey, http: httpClient}, nil
}

// Submit queues a message with the given api token.
func (c *Client) Submit(ctx context.Context, sub smsqueue.Submission) (int64, error) {
	var resp SendResponse
	status, err := c.do(ctx, http.MethodPost, "/send-sms", SendRequest{
		APIToken: sub.Token,
		To:       sub.Receiver,
		Message:  sub.Payload,
	}, &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("httpapi: unexpected status %d", status)
	}

	return resp.ID, nil
}

// Claim implements smsqueue.Claimer.
func (c *Client) Claim(ctx context.Context) (smsqueue.Message, bool, error) {
	var resp NextMessageResponse
	status, err := c.do(ctx, http.MethodGet, "/get-next-message", nil, &resp)
	if err != nil {
		return smsqueue.Message{}, false, err
	}

	switch status {
	case http.StatusNoContent:
		return smsqueue.Message{}, false, nil
	case http.StatusOK:
		return smsqueue.Message{
			ID:         resp.ID,
			Receiver:   resp.To,
			Payload:    resp.Message,
			Status:     smsqueue.StatusProcessing,
			Attempts:   resp.Attempts,
			ClaimToken: resp.ClaimToken,
		}, true, nil
	default:
		return smsqueue.Message{}, false, fmt.Errorf("httpapi: unexpected status %d", status)
	}
}

// Report implements smsqueue.Reporter.
func (c *Client) Report(ctx context.Context, report smsqueue.Report) (smsqueue.Ack, error) {
	var resp UpdateStatusResponse
	status, err := c.do(ctx, http.MethodPost, "/update-status", UpdateStatusRequest{
		ID:         report.ID,
		Status:     string(report.Outcome),
		ClaimToken: report.ClaimToken,
	}, &resp)
	if err != nil {
		return smsqueue.Ack{}, err
	}
	if status != http.StatusOK {
		return smsqueue.Ack{}, fmt.Errorf("httpapi: unexpected status %d", status)
	}

	parsed, err := smsqueue.ParseStatus(resp.Status)
	if err != nil {
		return smsqueue.Ack{}, err
	}

	return smsqueue.Ack{ID: resp.ID, Status: parsed, Applied: resp.Applied}, nil
}

// do sends the request and decodes a 200 body into out. Error statuses map onto the
// smsqueue sentinels so a Worker can tell retryable failures apart.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.workerKey != "" {
		req.Header.Set(PhoneKeyHeader, c.workerKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		return 0, smsqueue.StorageError("http "+path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("httpapi: decode %s response: %w", path, err)
		}

		return resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	var apiErr ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return 0, ErrWorkerKeyRejected
	case resp.StatusCode == http.StatusForbidden:
		return 0, smsqueue.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return 0, smsqueue.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return 0, fmt.Errorf("%w: %s", smsqueue.ErrValidation, apiErr.Message)
	case resp.StatusCode >= http.StatusInternalServerError:
		return 0, smsqueue.StorageError("http "+path, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Message))
	default:
		return resp.StatusCode, nil
	}
}
