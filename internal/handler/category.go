package handler

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/householdhq/budget/internal/ctxkeys"
	"github.com/householdhq/budget/internal/response"
	"github.com/householdhq/budget/internal/service"
)

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (r *categoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required.Error("name is required")),
		validation.Field(&r.Kind, validation.Required.Error("kind is required")),
	)
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type categoryHandler struct {
	categoryService *service.CategoryService
}

func NewCategoryHandler(categoryService *service.CategoryService) *categoryHandler {
	return &categoryHandler{categoryService: categoryService}
}

func (h *categoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context(), ctxkeys.Identity(r.Context()))
	if err != nil {
		renderError(w, r, err)
		return
	}

	res := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		res = append(res, categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind})
	}
	response.Render(w, res, http.StatusOK)
}

func (h *categoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	c, err := h.categoryService.Create(r.Context(), ctxkeys.Identity(r.Context()), req.Name, req.Kind)
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind}, http.StatusOK)
}
