package httpapi

import (
	"time"

	"github.com/velmie/smsqueue"
)

// PhoneKeyHeader carries the worker key on agent-facing routes.
const PhoneKeyHeader = "Phone-Key"

// SendRequest is the body of POST /send-sms.
type SendRequest struct {
	APIToken string `json:"api_token"`
	To       string `json:"to"`
	Message  string `json:"message"`
}

// SendResponse acknowledges a queued message.
type SendResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// NextMessageResponse is a claimed message handed to a worker.
type NextMessageResponse struct {
	ID         int64  `json:"id"`
	To         string `json:"to"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
	ClaimToken string `json:"claim_token"`
}

// UpdateStatusRequest is the body of POST /update-status.
type UpdateStatusRequest struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	ClaimToken string `json:"claim_token,omitempty"`
}

// UpdateStatusResponse acknowledges a report.
type UpdateStatusResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}

// MessageResponse is the read view of a stored message.
type MessageResponse struct {
	ID        int64  `json:"id"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	CreatedAt string `json:"created_at"`
	ClaimedAt string `json:"claimed_at,omitempty"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toMessageResponse(msg smsqueue.Message) MessageResponse {
	resp := MessageResponse{
		ID:        msg.ID,
		To:        msg.Receiver,
		Message:   msg.Payload,
		Status:    msg.Status.String(),
		Attempts:  msg.Attempts,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !msg.ClaimedAt.IsZero() {
		resp.ClaimedAt = msg.ClaimedAt.UTC().Format(time.RFC3339Nano)
	}

	return resp
}
