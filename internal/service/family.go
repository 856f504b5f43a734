package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	v "github.com/householdhq/budget/internal/validation"
	"github.com/jmoiron/sqlx"
)

type AcceptInviteInput struct {
	Token    string
	Name     string
	Password string
}

func (i AcceptInviteInput) Validate() error {
	return validation.Errors{
		"token":    validation.Validate(i.Token, validation.Required.Error("token is required")),
		"name":     v.ValidateName(i.Name),
		"password": v.ValidatePassword(i.Password),
	}.Filter()
}

type FamilyMembers struct {
	Family  *model.Family
	Members []*model.User
}

type FamilyService struct {
	db       *sqlx.DB
	tokens   *TokenService
	auth     *AuthService
	notifier Notifier
	// discardOnConflict deletes an invitation whose email already has an account
	discardOnConflict bool
	now               func() time.Time
}

func NewFamilyService(database *sqlx.DB, tokens *TokenService, auth *AuthService, notifier Notifier, discardOnConflict bool, now func() time.Time) *FamilyService {
	if now == nil {
		now = utcNow
	}
	return &FamilyService{
		db:                database,
		tokens:            tokens,
		auth:              auth,
		notifier:          notifier,
		discardOnConflict: discardOnConflict,
		now:               now,
	}
}

// Invite sends a family invitation to email on behalf of inviter.
func (s *FamilyService) Invite(ctx context.Context, inviter *Identity, email string) error {
	if inviter == nil {
		return ErrUnauthenticated
	}

	email = v.NormalizeEmail(email)
	err := v.ValidateEmail(email)
	if err != nil {
		return invalid(validation.Errors{"email": err})
	}

	existing, err := repository.NewUserRepository(s.db).ByEmail(ctx, email)
	if err == nil {
		if existing.FamilyID == inviter.FamilyID {
			return ErrAlreadyMember
		}
		return ErrEmailAlreadyExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	family, err := repository.NewFamilyRepository(s.db).ByID(ctx, inviter.FamilyID)
	if err != nil {
		return fmt.Errorf("failed to get family: %w", err)
	}

	issued, err := s.tokens.Issue(ctx, IssueRequest{
		Type:      model.TokenTypeFamilyInvite,
		Email:     email,
		FamilyID:  &family.ID,
		InviterID: &inviter.UserID,
	})
	if err != nil {
		return err
	}
	if issued.Pending {
		return ErrAlreadyInvited
	}

	err = s.notifier.Notify(ctx, Notification{
		Kind:        model.TokenTypeFamilyInvite,
		To:          email,
		Token:       issued.Token.Token,
		ExpiresIn:   issued.Token.Lifetime(),
		InviterName: inviter.Name,
		FamilyName:  family.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	slog.InfoContext(ctx, "family invitation sent", "family_id", family.ID, "inviter_id", inviter.UserID)
	return nil
}

// AcceptInvite consumes an invitation and creates the invited, already
// verified, member of the inviting family.
func (s *FamilyService) AcceptInvite(ctx context.Context, input AcceptInviteInput) (*model.User, error) {
	input.Name = strings.TrimSpace(input.Name)

	err := input.Validate()
	if err != nil {
		return nil, invalid(err)
	}

	hash, err := s.auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *model.User
	_, err = s.tokens.Consume(ctx, model.TokenTypeFamilyInvite, input.Token, Effect{
		Check: func(ctx context.Context, tx *sqlx.Tx, t *model.Token) error {
			_, err := repository.NewUserRepository(tx).ByEmail(ctx, t.Email)
			if err == nil {
				return ErrEmailAlreadyExists
			}
			if !errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("failed to check email: %w", err)
			}
			return nil
		},
		Discard: s.discardInvite,
		Apply: func(ctx context.Context, tx *sqlx.Tx, t *model.Token) error {
			if t.FamilyID == nil {
				return fmt.Errorf("invitation %s has no family", t.ID)
			}
			now := s.now()
			invitedAt := t.CreatedAt
			u := &model.User{
				ID:           uuid.New().String(),
				Email:        t.Email,
				Name:         input.Name,
				PasswordHash: &hash,
				FamilyID:     *t.FamilyID,
				InvitedBy:    t.InviterID,
				InvitedAt:    &invitedAt,
				CreatedAt:    now,
			}
			u.MarkVerified(now)

			err := repository.NewUserRepository(tx).Create(ctx, u)
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return ErrEmailAlreadyExists
			}
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			user = u
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "invitation accepted", "user_id", user.ID, "family_id", user.FamilyID)
	return user, nil
}

// discardInvite reports whether a rejected acceptance also consumes the
// invitation. Only an account conflict under the delete policy does.
func (s *FamilyService) discardInvite(checkErr error) bool {
	return s.discardOnConflict && errors.Is(checkErr, ErrEmailAlreadyExists)
}

// Members returns the family of the identity and everyone in it.
func (s *FamilyService) Members(ctx context.Context, identity *Identity) (*FamilyMembers, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	family, err := repository.NewFamilyRepository(s.db).ByID(ctx, identity.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	members, err := repository.NewUserRepository(s.db).ByFamily(ctx, family.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}

	return &FamilyMembers{Family: family, Members: members}, nil
}
