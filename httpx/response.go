package httpx

import (
	"context"
	"encoding/json"
	"net/http"
)

// Envelope is the body of every successful API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Result     any         `json:"result"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Count int64 `json:"count"`
}

// ErrorResponse is the body of every failed API response. Error is a stable machine code.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"success":false,"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// OK writes result wrapped in a success envelope.
func OK(w http.ResponseWriter, status int, result any, message string) {
	JSON(w, status, Envelope{Success: true, Result: result, Message: message})
}

// List writes one page of results.
func List(w http.ResponseWriter, result any, p Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Result: result, Pagination: &p})
}

func JSONError(w http.ResponseWriter, status int, code string, details any) {
	Error(w, status, code, http.StatusText(status), details)
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

type ctxKey struct{}

// WithRequestID stores the request id used to correlate log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
