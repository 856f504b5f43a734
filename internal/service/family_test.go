package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/householdhq/budget/internal/logger"
	"github.com/householdhq/budget/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteAndAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Maria Silva")
	inviter := IdentityOf(owner)

	require.NoError(t, h.families.Invite(ctx, inviter, "Partner@Example.com"))
	require.Equal(t, 1, h.notifier.SentCount())

	sent := h.notifier.Last(t)
	assert.Equal(t, model.TokenTypeFamilyInvite, sent.Kind)
	assert.Equal(t, "partner@example.com", sent.To)
	assert.Equal(t, "Maria Silva", sent.InviterName)
	assert.Equal(t, "Silva household", sent.FamilyName)

	h.clock.Advance(48 * time.Hour)

	member, err := h.families.AcceptInvite(ctx, AcceptInviteInput{Token: sent.Token, Name: "Joao Silva", Password: "joined123"})
	require.NoError(t, err)
	assert.Equal(t, owner.FamilyID, member.FamilyID)
	assert.Equal(t, "partner@example.com", member.Email)
	assert.True(t, member.IsVerified)
	require.NotNil(t, member.InvitedBy)
	assert.Equal(t, owner.ID, *member.InvitedBy)
	require.NotNil(t, member.InvitedAt)
	assert.True(t, member.InvitedAt.Equal(epoch))

	_, err = h.auth.Authenticate(ctx, "partner@example.com", "joined123")
	assert.NoError(t, err)

	members, err := h.families.Members(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, owner.FamilyID, members.Family.ID)
	assert.Len(t, members.Members, 2)

	_, err = h.families.AcceptInvite(ctx, AcceptInviteInput{Token: sent.Token, Name: "Again", Password: "joined123"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInviteRejectsExistingUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Owner")
	h.signup(t, "elsewhere@example.com", "Elsewhere")

	err := h.families.Invite(ctx, IdentityOf(owner), "owner@example.com")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	err = h.families.Invite(ctx, IdentityOf(owner), "elsewhere@example.com")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	err = h.families.Invite(ctx, IdentityOf(owner), "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = h.families.Invite(ctx, nil, "someone@example.com")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Zero(t, h.notifier.SentCount())
}

func TestInviteWhilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Owner")
	other := h.signup(t, "other@example.com", "Other")

	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "guest@example.com"))

	err := h.families.Invite(ctx, IdentityOf(owner), "guest@example.com")
	assert.ErrorIs(t, err, ErrAlreadyInvited)

	// a pending invitation to one family does not block another family
	require.NoError(t, h.families.Invite(ctx, IdentityOf(other), "guest@example.com"))

	h.clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "guest@example.com"))
	assert.Equal(t, 3, h.notifier.SentCount())
}

func TestAcceptInviteExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Owner")
	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "late@example.com"))
	token := h.notifier.Last(t).Token

	h.clock.Advance(8 * 24 * time.Hour)

	_, err := h.families.AcceptInvite(ctx, AcceptInviteInput{Token: token, Name: "Late", Password: "secret123"})
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Empty(t, h.storedTokens(t, "late@example.com", model.TokenTypeFamilyInvite))
	assert.Equal(t, 1, h.count(t, "users"))
}

func TestAcceptInviteValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Owner")
	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "guest@example.com"))
	token := h.notifier.Last(t).Token

	_, err := h.families.AcceptInvite(ctx, AcceptInviteInput{Token: token, Name: "Guest", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.families.AcceptInvite(ctx, AcceptInviteInput{Token: token, Name: "", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Len(t, h.storedTokens(t, "guest@example.com", model.TokenTypeFamilyInvite), 1)
}

func TestAcceptInviteConflictPolicy(t *testing.T) {
	tests := []struct {
		name    string
		discard bool
		remain  int
	}{
		{"keep", false, 1},
		{"delete", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessWithPolicy(t, tt.discard)
			ctx := context.Background()

			owner := h.signup(t, "owner@example.com", "Owner")
			require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "taken@example.com"))
			token := h.notifier.Last(t).Token

			// the invited email registers on its own before accepting
			h.signup(t, "taken@example.com", "Taken")

			_, err := h.families.AcceptInvite(ctx, AcceptInviteInput{Token: token, Name: "Taken", Password: "secret123"})
			assert.ErrorIs(t, err, ErrEmailAlreadyExists)
			assert.Len(t, h.storedTokens(t, "taken@example.com", model.TokenTypeFamilyInvite), tt.remain)
		})
	}
}

func TestDiscardInviteOnlyOnAccountConflict(t *testing.T) {
	keep := newHarness(t)
	discard := newHarnessWithPolicy(t, true)

	assert.False(t, keep.families.discardInvite(ErrEmailAlreadyExists))
	assert.True(t, discard.families.discardInvite(ErrEmailAlreadyExists))
	assert.True(t, discard.families.discardInvite(fmt.Errorf("accept: %w", ErrEmailAlreadyExists)))
	assert.False(t, discard.families.discardInvite(errors.New("database is locked")))
}

func TestInviteLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(logger.WithContextAttrs(logger.NewHandler(&buf, false))))
	t.Cleanup(func() { slog.SetDefault(previous) })

	h := newHarness(t)
	owner := h.signup(t, "owner@example.com", "Owner")
	buf.Reset()

	ctx := logger.WithRequestID(context.Background(), "req-invite")
	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "guest@example.com"))

	assert.Contains(t, buf.String(), `"msg":"family invitation sent"`)
	assert.Contains(t, buf.String(), `"request_id":"req-invite"`)
}

func TestAcceptInviteConcurrentSingleMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.signup(t, "owner@example.com", "Owner")
	require.NoError(t, h.families.Invite(ctx, IdentityOf(owner), "racer@example.com"))
	token := h.notifier.Last(t).Token

	const workers = 6
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.families.AcceptInvite(ctx, AcceptInviteInput{
				Token:    token,
				Name:     fmt.Sprintf("Racer %d", i),
				Password: "joined123",
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrEmailAlreadyExists):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())

	members, err := h.families.Members(ctx, IdentityOf(owner))
	require.NoError(t, err)
	assert.Len(t, members.Members, 2)
	assert.Empty(t, h.storedTokens(t, "racer@example.com", model.TokenTypeFamilyInvite))
}
