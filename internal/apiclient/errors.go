package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"bookden/pkg/domainerrors"
	"bookden/pkg/platform/sanitize"
)

// APIError is the normalized failure for an upstream call. Callers never see
// raw transport errors or unparsed bodies; they see status, a sanitized
// server message, and enough request context to correlate logs.
type APIError struct {
	Status    int
	Method    string
	Path      string
	RequestID string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// codeForStatus maps an HTTP status to the error taxonomy.
func codeForStatus(status int) domainerrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case status == http.StatusNotFound:
		return domainerrors.CodeNotFound
	case status >= 400 && status < 500:
		return domainerrors.CodeValidation
	case status >= 500:
		return domainerrors.CodeServer
	default:
		return domainerrors.CodeInternal
	}
}

// serverMessage pulls a human-readable message out of an error body. The
// upstream wraps failures as {"error": ...} or {"message": ...}; anything
// else falls back to the sanitized raw body.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error != "":
			return sanitize.ForLog(envelope.Error)
		case envelope.Message != "":
			return sanitize.ForLog(envelope.Message)
		case envelope.Detail != "":
			return sanitize.ForLog(envelope.Detail)
		}
	}
	return sanitize.ForLog(body)
}
