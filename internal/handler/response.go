package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/response"
	"github.com/householdhq/budget/internal/service"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	FamilyID   string    `json:"family_id"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		FamilyID:   u.FamilyID,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// decode reads a JSON body into dst and runs its validation rules.
func decode(w http.ResponseWriter, r *http.Request, dst validation.Validatable) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		return errBadBody
	}
	err = dst.Validate()
	if err != nil {
		return &service.InputError{Err: err}
	}
	return nil
}

// renderError maps service errors to status codes. Anything unrecognised is
// logged and rendered as a generic 500.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *service.InputError

	switch {
	case errors.Is(err, errBadBody):
		response.RenderError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &inputErr):
		response.RenderFieldErrors(w, service.ErrInvalidInput.Error(), fieldErrors(inputErr.Err))
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrAlreadyInvited),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrCategoryExists):
		response.RenderError(w, statusMessage(err), http.StatusBadRequest)
	case errors.Is(err, service.ErrUserNotFound):
		response.RenderError(w, service.ErrUserNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrUnauthenticated):
		response.RenderUnauthorized(w)
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		response.RenderInternalError(w)
	}
}

// statusMessage returns the sentinel message without the wrapping context.
func statusMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrInvalidToken,
		service.ErrTokenExpired,
		service.ErrEmailAlreadyExists,
		service.ErrAlreadyVerified,
		service.ErrAlreadyInvited,
		service.ErrAlreadyMember,
		service.ErrCategoryExists,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func fieldErrors(err error) map[string]string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return fields
}
