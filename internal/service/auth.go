package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	"github.com/householdhq/budget/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "auth_token"

// AuthConfig configures credential checks and the session cookie.
type AuthConfig struct {
	JWTSecret    string
	JWTExpiry    time.Duration
	SecureCookie bool
	BcryptCost   int
}

// Identity is the assertion handed to the session layer after login.
type Identity struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	FamilyID string `json:"family_id"`
}

func IdentityOf(user *model.User) *Identity {
	return &Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		FamilyID: user.FamilyID,
	}
}

type AuthService struct {
	userRepository repository.UserRepository
	cfg            AuthConfig
	dummyHash      []byte
	now            func() time.Time
}

func NewAuthService(userRepository repository.UserRepository, cfg AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth: JWT secret is required")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.JWTExpiry == 0 {
		cfg.JWTExpiry = 7 * 24 * time.Hour
	}

	// Compared against when the email is unknown, so both paths pay for one bcrypt run
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to prepare dummy hash: %w", err)
	}

	return &AuthService{
		userRepository: userRepository,
		cfg:            cfg,
		dummyHash:      dummyHash,
		now:            time.Now,
	}, nil
}

// Authenticate verifies an email and password pair.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, fmt.Errorf("login for unknown email: %w", ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.CanLogIn() {
		return nil, fmt.Errorf("login before verification: %w", ErrEmailNotVerified)
	}

	err = s.ComparePassword(password, *user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("password mismatch: %w", ErrInvalidCredentials)
	}

	return IdentityOf(user), nil
}

// CurrentUser loads the account behind a session. A session whose account no
// longer exists is treated as unauthenticated.
func (s *AuthService) CurrentUser(ctx context.Context, identity *Identity) (*model.User, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepository.ByID(ctx, identity.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a password against a bcrypt hash in constant time.
func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateJWT(identity *Identity) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.cfg.JWTExpiry)
	claims := jwt.MapClaims{
		"user_id":   identity.UserID,
		"email":     identity.Email,
		"name":      identity.Name,
		"family_id": identity.FamilyID,
		"exp":       expiry.Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiry, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	identity := &Identity{}
	identity.UserID, _ = claims["user_id"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.Name, _ = claims["name"].(string)
	identity.FamilyID, _ = claims["family_id"].(string)
	if identity.UserID == "" || identity.FamilyID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	return identity, nil
}

// StartSession issues a session token for the identity and sets it as a cookie.
func (s *AuthService) StartSession(w http.ResponseWriter, identity *Identity) error {
	token, expiry, err := s.GenerateJWT(identity)
	if err != nil {
		return fmt.Errorf("failed to generate session token: %w", err)
	}
	s.SetJWTCookie(w, token, expiry)
	return nil
}

// SessionToken extracts the session token from the cookie or a bearer header.
func (s *AuthService) SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return ""
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
