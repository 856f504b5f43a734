package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func RenderUnauthorized(w http.ResponseWriter) {
	RenderError(w, "authentication required", http.StatusUnauthorized)
}

func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, "internal error", http.StatusInternalServerError)
}

func RenderRateLimitExceeded(w http.ResponseWriter) {
	RenderError(w, "too many requests, please try again later", http.StatusTooManyRequests)
}

func RenderError(w http.ResponseWriter, msg string, status int) {
	Render(w, errorResponse{Error: msg}, status)
}

// RenderFieldErrors renders a 400 with one message per invalid field.
func RenderFieldErrors(w http.ResponseWriter, msg string, fields map[string]string) {
	Render(w, errorResponse{Error: msg, Fields: fields}, http.StatusBadRequest)
}

func Render(w http.ResponseWriter, res any, status int) {
	w.Header().Set("Content-Type", "application/json")

	content, err := json.Marshal(res)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(content)
}
