package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/householdhq/budget/internal/db/dbtest"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var epoch = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier keeps notifications in memory; Fail makes dispatch error.
type recordingNotifier struct {
	Fail bool

	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	if n.Fail {
		return errors.New("notification dispatch failed")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) SentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) Last(t *testing.T) Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no notifications sent")
	return n.sent[len(n.sent)-1]
}

type harness struct {
	db         *sqlx.DB
	clock      *testClock
	notifier   *recordingNotifier
	tokens     *TokenService
	auth       *AuthService
	accounts   *AccountService
	families   *FamilyService
	categories *CategoryService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithPolicy(t, false)
}

func newHarnessWithPolicy(t *testing.T, discardConflictingInvites bool) *harness {
	t.Helper()

	database := dbtest.New(t)
	clock := &testClock{now: epoch}
	notifier := &recordingNotifier{}

	auth, err := NewAuthService(repository.NewUserRepository(database), AuthConfig{
		JWTSecret:  "test-secret-that-is-long-enough-for-hs256",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	tokens := NewTokenService(database, DefaultTokenWindows(), clock.Now)

	return &harness{
		db:         database,
		clock:      clock,
		notifier:   notifier,
		tokens:     tokens,
		auth:       auth,
		accounts:   NewAccountService(database, tokens, auth, notifier, clock.Now),
		families:   NewFamilyService(database, tokens, auth, notifier, discardConflictingInvites, clock.Now),
		categories: NewCategoryService(repository.NewCategoryRepository(database)),
	}
}

func (h *harness) signup(t *testing.T, email, name string) *model.User {
	t.Helper()
	user, err := h.accounts.Signup(context.Background(), SignupInput{Email: email, Password: "secret123", Name: name})
	require.NoError(t, err)
	return user
}

// unverifiedUser stores an account that has not completed verification.
func (h *harness) unverifiedUser(t *testing.T, email string) *model.User {
	t.Helper()
	ctx := context.Background()

	family := &model.Family{Name: "Pending household", CreatedAt: epoch}
	require.NoError(t, repository.NewFamilyRepository(h.db).Create(ctx, family))

	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      "Pending User",
		FamilyID:  family.ID,
		CreatedAt: epoch,
	}
	require.NoError(t, repository.NewUserRepository(h.db).Create(ctx, user))
	return user
}

func (h *harness) storedTokens(t *testing.T, email, tokenType string) []*model.Token {
	t.Helper()
	tokens, err := repository.NewTokenRepository(h.db).ByEmailAndType(context.Background(), email, tokenType)
	require.NoError(t, err)
	return tokens
}

func (h *harness) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
