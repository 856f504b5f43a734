package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/householdhq/budget/internal/response"
	"github.com/jmoiron/sqlx"
)

type healthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *healthHandler {
	return &healthHandler{db: db}
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "health check failed", "error", err)
		response.RenderError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	response.Render(w, map[string]string{"status": "ok"}, http.StatusOK)
}
