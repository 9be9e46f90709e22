package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/velmie/smsqueue"
	_ "github.com/velmie/smsqueue/httpapi/docs"
)

const maxBodyBytes = 64 << 10

// Backend is the queue surface exposed over HTTP. *smsqueue.Service implements it.
type Backend interface {
	Submit(ctx context.Context, sub smsqueue.Submission) (int64, error)
	Claim(ctx context.Context) (smsqueue.Message, bool, error)
	Report(ctx context.Context, report smsqueue.Report) (smsqueue.Ack, error)
	Get(ctx context.Context, id int64) (smsqueue.Message, error)
}

var _ Backend = (*smsqueue.Service)(nil)

// Server routes the relay endpoints onto a Backend.
type Server struct {
	backend    Backend
	workerKeys [][]byte
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New constructs a Server. Agent-facing routes accept any of workerKeys in the Phone-Key
// header; with no keys configured they reject every request.
func New(backend Backend, workerKeys []string, logger *slog.Logger) *Server {
	if backend == nil {
		panic("httpapi: nil Backend")
	}
	if logger == nil {
		logger = slog.Default()
	}

	keys := make([][]byte, 0, len(workerKeys))
	for _, key := range workerKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys = append(keys, []byte(key))
	}

	s := &Server{
		backend:    backend,
		workerKeys: keys,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /send-sms", s.handleSend)
	s.mux.HandleFunc("GET /get-next-message", s.requireWorker(s.handleNext))
	s.mux.HandleFunc("POST /update-status", s.requireWorker(s.handleUpdateStatus))
	s.mux.HandleFunc("GET /messages/{id}", s.requireWorker(s.handleGet))
}

func (s *Server) requireWorker(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.validWorkerKey(r.Header.Get(PhoneKeyHeader)) {
			s.logger.Warn("smsqueue worker key rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid Phone-Key")

			return
		}
		next(w, r)
	}
}

func (s *Server) validWorkerKey(presented string) bool {
	if presented == "" {
		return false
	}

	matched := 0
	for _, key := range s.workerKeys {
		matched |= subtle.ConstantTimeCompare([]byte(presented), key)
	}

	return matched == 1
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, smsqueue.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, smsqueue.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", "token is not authorized to submit messages")
	case errors.Is(err, smsqueue.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "message not found")
	case errors.Is(err, smsqueue.ErrStorage),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "queue is temporarily unavailable")
	default:
		s.logger.Error("smsqueue request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
