package handler

import (
	"net/http"
	"time"

	"github.com/householdhq/budget/internal/ctxkeys"
	"github.com/householdhq/budget/internal/response"
	"github.com/householdhq/budget/internal/service"
)

type familyResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	Members   []userResponse `json:"members"`
}

type familyHandler struct {
	familyService *service.FamilyService
}

func NewFamilyHandler(familyService *service.FamilyService) *familyHandler {
	return &familyHandler{familyService: familyService}
}

func (h *familyHandler) Family(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyService.Members(r.Context(), ctxkeys.Identity(r.Context()))
	if err != nil {
		renderError(w, r, err)
		return
	}

	res := familyResponse{
		ID:        family.Family.ID,
		Name:      family.Family.Name,
		CreatedAt: family.Family.CreatedAt,
		Members:   make([]userResponse, 0, len(family.Members)),
	}
	for _, m := range family.Members {
		res.Members = append(res.Members, newUserResponse(m))
	}

	response.Render(w, res, http.StatusOK)
}

func (h *familyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.familyService.Invite(r.Context(), ctxkeys.Identity(r.Context()), req.Email)
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, messageResponse{Message: "invitation sent"}, http.StatusOK)
}
