package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(nil, AuthConfig{})
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.signup(t, "login@example.com", "Login User")
	h.unverifiedUser(t, "unverified@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"unknown email", "ghost@example.com", "secret123", ErrUserNotFound},
		{"unverified", "unverified@example.com", "secret123", ErrEmailNotVerified},
		{"wrong password", "login@example.com", "wrong-password", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Authenticate(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("success ignores email case", func(t *testing.T) {
		identity, err := h.auth.Authenticate(ctx, "  LOGIN@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, identity.UserID)
		assert.Equal(t, user.FamilyID, identity.FamilyID)
		assert.Equal(t, "Login User", identity.Name)
	})
}

func TestAuthenticateVerifiedWithoutPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.unverifiedUser(t, "nopass@example.com")
	user.MarkVerified(epoch)
	require.NoError(t, repository.NewUserRepository(h.db).Update(ctx, user))

	_, err := h.auth.Authenticate(ctx, "nopass@example.com", "anything")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestJWTRoundTrip(t *testing.T) {
	h := newHarness(t)

	identity := IdentityOf(&model.User{ID: "u1", Email: "a@example.com", Name: "A", FamilyID: "f1"})

	token, expiry, err := h.auth.GenerateJWT(identity)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)

	got, err := h.auth.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)

	_, err = h.auth.VerifyJWT(token + "x")
	assert.Error(t, err)

	other, err := NewAuthService(nil, AuthConfig{JWTSecret: "a-completely-different-signing-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	_, err = other.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWTExpired(t *testing.T) {
	h := newHarness(t)

	token, _, err := h.auth.GenerateJWT(&Identity{UserID: "u1", FamilyID: "f1"})
	require.NoError(t, err)

	h.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = h.auth.VerifyJWT(token)
	assert.Error(t, err)
}

func TestSessionCookie(t *testing.T) {
	h := newHarness(t)
	identity := &Identity{UserID: "u1", Email: "a@example.com", Name: "A", FamilyID: "f1"}

	rec := httptest.NewRecorder()
	require.NoError(t, h.auth.StartSession(rec, identity))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, cookies[0].Value, h.auth.SessionToken(req))

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", h.auth.SessionToken(bearer))

	assert.Empty(t, h.auth.SessionToken(httptest.NewRequest(http.MethodGet, "/", nil)))

	cleared := httptest.NewRecorder()
	h.auth.ClearJWTCookie(cleared)
	assert.Equal(t, -1, cleared.Result().Cookies()[0].MaxAge)
}

func TestCurrentUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.signup(t, "me@example.com", "Me")

	got, err := h.auth.CurrentUser(ctx, IdentityOf(user))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "me@example.com", got.Email)

	_, err = h.auth.CurrentUser(ctx, &Identity{UserID: "gone"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = h.auth.CurrentUser(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
