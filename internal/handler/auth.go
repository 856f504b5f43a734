package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/householdhq/budget/internal/ctxkeys"
	"github.com/householdhq/budget/internal/response"
	"github.com/householdhq/budget/internal/service"
)

type emailRequest struct {
	Email string `json:"email"`
}

func (r *emailRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required.Error("email is required")),
	)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *credentialsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required.Error("email is required")),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *signupRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required.Error("email is required")),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
		validation.Field(&r.Name, validation.Required.Error("name is required")),
	)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (r *tokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
	)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
}

type acceptInviteRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r *acceptInviteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
		validation.Field(&r.Name, validation.Required.Error("name is required")),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
}

type authHandler struct {
	authService    *service.AuthService
	accountService *service.AccountService
	familyService  *service.FamilyService
}

func NewAuthHandler(authService *service.AuthService, accountService *service.AccountService, familyService *service.FamilyService) *authHandler {
	return &authHandler{
		authService:    authService,
		accountService: accountService,
		familyService:  familyService,
	}
}

func (h *authHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	user, err := h.accountService.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.authService.StartSession(w, service.IdentityOf(user))
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, newUserResponse(user), http.StatusOK)
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	identity, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
		slog.InfoContext(r.Context(), "login failed", "reason", err)
		response.RenderError(w, service.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	case errors.Is(err, service.ErrEmailNotVerified):
		response.RenderError(w, service.ErrEmailNotVerified.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		renderError(w, r, err)
		return
	}

	err = h.authService.StartSession(w, identity)
	if err != nil {
		renderError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "user logged in", "user_id", identity.UserID)
	response.Render(w, identity, http.StatusOK)
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	response.Render(w, messageResponse{Message: "logged out"}, http.StatusOK)
}

func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.CurrentUser(r.Context(), ctxkeys.Identity(r.Context()))
	if err != nil {
		renderError(w, r, err)
		return
	}
	response.Render(w, newUserResponse(user), http.StatusOK)
}

func (h *authHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.accountService.SendVerification(r.Context(), req.Email)
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, messageResponse{Message: "verification email sent"}, http.StatusOK)
}

func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	user, err := h.accountService.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, newUserResponse(user), http.StatusOK)
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.accountService.ForgotPassword(r.Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrInvalidInput) {
		renderError(w, r, err)
		return
	}

	// Same answer whether or not the account exists
	response.Render(w, messageResponse{Message: "if an account exists for this email, a reset link has been sent"}, http.StatusOK)
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.accountService.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, messageResponse{Message: "password updated"}, http.StatusOK)
}

func (h *authHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	err := decode(w, r, &req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	user, err := h.familyService.AcceptInvite(r.Context(), service.AcceptInviteInput{
		Token:    req.Token,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	err = h.authService.StartSession(w, service.IdentityOf(user))
	if err != nil {
		renderError(w, r, err)
		return
	}

	response.Render(w, newUserResponse(user), http.StatusOK)
}
