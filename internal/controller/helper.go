package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/service/room"
)

const maxBodySize = 1 << 20

type envelope map[string]any

func (c *controller) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json response", "error", err)
	}
}

// readJSON decodes a single JSON value from the request body. An empty body
// leaves dst untouched.
func (c *controller) readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %w", room.ErrValidation, err)
	}

	return nil
}

func (c *controller) getQueryInt(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", room.ErrValidation, key)
	}

	return v, nil
}

// errorCode maps an error to its wire code and HTTP status.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, room.ErrUnauthorized):
		return "unauthorized", http.StatusUnauthorized
	case errors.Is(err, room.ErrPermissionDenied):
		return "permission_denied", http.StatusForbidden
	case errors.Is(err, room.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, room.ErrValidation), errors.Is(err, protocol.ErrInvalidMessage):
		return "validation_error", http.StatusBadRequest
	case errors.Is(err, room.ErrStorageFailure):
		return "storage_failure", http.StatusInternalServerError
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

// errorPayload hides store and internal details from clients.
func errorPayload(err error) protocol.ErrorPayload {
	code, status := errorCode(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}

	var fields []protocol.FieldError
	var verr *protocol.ValidationError
	if errors.As(err, &verr) {
		fields = verr.Fields
	}

	return protocol.ErrorPayload{Message: msg, Code: code, Fields: fields}
}

func (c *controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	_, status := errorCode(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "error", err)
	}

	c.writeJSON(w, status, envelope{"error": errorPayload(err)})
}

func (c *controller) writeValidationErrors(w http.ResponseWriter, fields []protocol.FieldError) {
	c.writeJSON(w, http.StatusBadRequest, envelope{"error": protocol.ErrorPayload{
		Message: "invalid request body",
		Code:    "validation_error",
		Fields:  fields,
	}})
}
