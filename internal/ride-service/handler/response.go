package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

const maxBodyBytes = 1 << 20

type envelope map[string]interface{}

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	json.NewEncoder(w).Encode(data)
}

// writeSuccess adds success=true to body and writes it.
func writeSuccess(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindValidation, domain.KindConflict:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code. Unclassified errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, log logger.Logger, action string, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindInternal {
		log.Error(action, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   http.StatusText(http.StatusInternalServerError),
			Message: "internal server error",
		})
		return
	}

	status := statusFor(de.Kind)
	log.WithFields(logger.LogFields{"status": status}).Warn(action, de.Error())
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: de.Message,
		Errors:  de.Fields,
	})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.InvalidRequest("could not read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.InvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// flexNumber accepts a JSON number or a numeric string and keeps its text.
// Range and integrality checks happen in the domain validators.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = flexNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*n = flexNumber(num.String())
	return nil
}

// Int returns the whole value of n, or false.
func (n flexNumber) Int() (int, bool) {
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}
