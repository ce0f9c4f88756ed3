package server

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/logger"
	"github.com/zsiec/avwrap/pkg/averr"
)

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetails contains the error details.
type ErrorDetails struct {
	Type    averr.Kind             `json:"type"`
	Message string                 `json:"message"`
	Code    int                    `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler turns errors into JSON responses.
type ErrorHandler struct {
	logger logrus.FieldLogger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger logrus.FieldLogger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError writes err with the status mapped from its kind. Errors that
// are not *averr.Error are reported as internal without their message.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := averr.As(err)
	if !ok {
		e = averr.Wrap(err, averr.KindInternal, "", "An unexpected error occurred")
	}
	h.write(w, r, e.HTTPStatus(), e)
}

// HandleNotFound handles 404 errors.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, averr.NotFound("", "endpoint"))
}

// HandleMethodNotAllowed handles 405 errors.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, http.StatusMethodNotAllowed, averr.InvalidArgument("", "method %s not allowed", r.Method))
}

// HandlePanic reports a recovered panic.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	logger.WithRequest(h.logger, r).WithField("panic", recovered).Error("Panic recovered in HTTP handler")
	h.HandleError(w, r, averr.New(averr.KindInternal, "", "An unexpected error occurred"))
}

func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, status int, e *averr.Error) {
	traceID := r.Header.Get(logger.RequestIDHeader)

	entry := logger.WithRequest(h.logger, r).WithFields(logrus.Fields{
		"error_type": e.Kind,
		"status":     status,
	})
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error(e.Error())
	} else {
		entry.Warn(e.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := ErrorResponse{
		Error: ErrorDetails{
			Type:    e.Kind,
			Message: e.Message,
			Code:    e.Code,
			Details: e.Details,
		},
		TraceID: traceID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}
