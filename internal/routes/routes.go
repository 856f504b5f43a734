package routes

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/householdhq/budget/internal/app"
	"github.com/householdhq/budget/internal/handler"
	"github.com/householdhq/budget/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.AccountService, app.FamilyService)
	family := handler.NewFamilyHandler(app.FamilyService)
	category := handler.NewCategoryHandler(app.CategoryService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// Auth actions (rate limited)
	rateLimiter := middleware.RateLimit(app.AuthLimiter)

	mux.HandleFunc("POST /api/auth/signup", rateLimiter(auth.Signup))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("POST /api/auth/send-verification", rateLimiter(auth.SendVerification))
	mux.HandleFunc("POST /api/auth/forgot-password", rateLimiter(auth.ForgotPassword))

	// Token consumption
	mux.HandleFunc("POST /api/auth/verify-email", rateLimiter(auth.VerifyEmail))
	mux.HandleFunc("POST /api/auth/reset-password", rateLimiter(auth.ResetPassword))
	mux.HandleFunc("POST /api/auth/accept-invite", rateLimiter(auth.AcceptInvite))

	// ============================================================================
	// AUTHENTICATED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))

	mux.HandleFunc("GET /api/family", middleware.RequireAuth(family.Family))
	mux.HandleFunc("POST /api/family/invite", middleware.RequireAuth(rateLimiter(family.Invite)))

	mux.HandleFunc("GET /api/categories", middleware.RequireAuth(category.List))
	mux.HandleFunc("POST /api/categories", middleware.RequireAuth(category.Create))

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestLogging,
		middleware.Recover,
	}
	if len(app.Cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, cors.Handler(cors.Options{
			AllowedOrigins:   app.Cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	middlewares = append(middlewares, middleware.AuthMiddleware(app.AuthService))

	return middleware.Chain(mux, middlewares...)
}
