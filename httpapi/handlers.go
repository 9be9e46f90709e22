package httpapi

import (
	"net/http"
	"strconv"

	"github.com/velmie/smsqueue"
)

// handleHealth godoc
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSend godoc
// @Summary Queue an SMS
// @Description Authorizes api_token and appends the message to the queue.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body SendRequest true "Submission"
// @Success 200 {object} SendResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /send-sms [post]
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.backend.Submit(r.Context(), smsqueue.Submission{
		Token:    req.APIToken,
		Receiver: req.To,
		Payload:  req.Message,
	})
	if err != nil {
		s.writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, SendResponse{ID: id, Status: smsqueue.StatusQueued.String()})
}

// handleNext godoc
// @Summary Claim the next queued message
// @Description Moves the oldest queued message to processing. Returns 204 when the queue is empty.
// @Tags agent
// @Produce json
// @Param Phone-Key header string true "Worker key"
// @Success 200 {object} NextMessageResponse
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /get-next-message [get]
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	msg, ok, err := s.backend.Claim(r.Context())
	if err != nil {
		s.writeDomainError(w, err)

		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	writeJSON(w, http.StatusOK, NextMessageResponse{
		ID:         msg.ID,
		To:         msg.Receiver,
		Message:    msg.Payload,
		Attempts:   msg.Attempts,
		ClaimToken: msg.ClaimToken,
	})
}

// handleUpdateStatus godoc
// @Summary Report a delivery outcome
// @Description Applies sent or failed to a processing message. Late or duplicate reports return applied=false.
// @Tags agent
// @Accept json
// @Produce json
// @Param Phone-Key header string true "Worker key"
// @Param request body UpdateStatusRequest true "Outcome"
// @Success 200 {object} UpdateStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /update-status [post]
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ack, err := s.backend.Report(r.Context(), smsqueue.Report{
		ID:         req.ID,
		Outcome:    smsqueue.Outcome(req.Status),
		ClaimToken: req.ClaimToken,
	})
	if err != nil {
		s.writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, UpdateStatusResponse{
		Success: true,
		ID:      ack.ID,
		Status:  ack.Status.String(),
		Applied: ack.Applied,
	})
}

// handleGet godoc
// @Summary Get a message
// @Tags agent
// @Produce json
// @Param Phone-Key header string true "Worker key"
// @Param id path int true "Message id"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /messages/{id} [get]
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be an integer")

		return
	}

	msg, err := s.backend.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(msg))
}
