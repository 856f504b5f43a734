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
	"github.com/householdhq/budget/internal/db"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	v "github.com/householdhq/budget/internal/validation"
	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

func (i SignupInput) Validate() error {
	return validation.Errors{
		"email":    v.ValidateEmail(i.Email),
		"password": v.ValidatePassword(i.Password),
		"name":     v.ValidateName(i.Name),
	}.Filter()
}

// AccountService owns the self-service identity flows: signup, email
// verification and password reset.
type AccountService struct {
	db       *sqlx.DB
	tokens   *TokenService
	auth     *AuthService
	notifier Notifier
	now      func() time.Time
}

func NewAccountService(database *sqlx.DB, tokens *TokenService, auth *AuthService, notifier Notifier, now func() time.Time) *AccountService {
	if now == nil {
		now = utcNow
	}
	return &AccountService{
		db:       database,
		tokens:   tokens,
		auth:     auth,
		notifier: notifier,
		now:      now,
	}
}

// Signup creates a family, its first (verified) member and the default
// categories in one transaction.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	input.Email = v.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	err := input.Validate()
	if err != nil {
		return nil, invalid(err)
	}

	hash, err := s.auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	family := &model.Family{
		ID:        uuid.New().String(),
		Name:      familyNameFor(input.Name),
		CreatedAt: now,
	}
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: &hash,
		FamilyID:     family.ID,
		CreatedAt:    now,
	}
	user.MarkVerified(now)

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := repository.NewUserRepository(tx)

		_, err := users.ByEmail(ctx, input.Email)
		if err == nil {
			return ErrEmailAlreadyExists
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		err = repository.NewFamilyRepository(tx).Create(ctx, family)
		if err != nil {
			return fmt.Errorf("failed to create family: %w", err)
		}

		err = users.Create(ctx, user)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		categories := repository.NewCategoryRepository(tx)
		for _, c := range model.DefaultCategories {
			err = categories.Create(ctx, &model.Category{FamilyID: family.ID, Name: c.Name, Kind: c.Kind, CreatedAt: now})
			if err != nil {
				return fmt.Errorf("failed to create default category %q: %w", c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "new user signed up", "user_id", user.ID, "family_id", family.ID)
	return user, nil
}

// SendVerification issues a verification token and emails it.
func (s *AccountService) SendVerification(ctx context.Context, email string) error {
	email = v.NormalizeEmail(email)
	err := v.ValidateEmail(email)
	if err != nil {
		return invalid(validation.Errors{"email": err})
	}

	user, err := repository.NewUserRepository(s.db).ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	issued, err := s.tokens.Issue(ctx, IssueRequest{Type: model.TokenTypeEmailVerify, Email: email})
	if err != nil {
		return err
	}

	err = s.notifier.Notify(ctx, Notification{
		Kind:          model.TokenTypeEmailVerify,
		To:            email,
		Token:         issued.Token.Token,
		ExpiresIn:     issued.Token.Lifetime(),
		RecipientName: user.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	slog.InfoContext(ctx, "verification email sent", "user_id", user.ID)
	return nil
}

// VerifyEmail consumes a verification token and marks its user verified.
// A token for an account that is already verified is discarded with
// ErrAlreadyVerified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	var user *model.User
	_, err := s.tokens.Consume(ctx, model.TokenTypeEmailVerify, token, Effect{
		Check: func(ctx context.Context, tx *sqlx.Tx, t *model.Token) error {
			u, err := repository.NewUserRepository(tx).ByEmail(ctx, t.Email)
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}
			if u.IsVerified {
				return ErrAlreadyVerified
			}
			user = u
			return nil
		},
		Discard: func(checkErr error) bool {
			return errors.Is(checkErr, ErrAlreadyVerified)
		},
		Apply: func(ctx context.Context, tx *sqlx.Tx, t *model.Token) error {
			user.MarkVerified(s.now())
			err := repository.NewUserRepository(tx).Update(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to mark user verified: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// ForgotPassword emails a reset link when the account exists. Unknown emails
// and already pending resets succeed silently so callers cannot tell them apart.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = v.NormalizeEmail(email)
	err := v.ValidateEmail(email)
	if err != nil {
		return invalid(validation.Errors{"email": err})
	}

	user, err := repository.NewUserRepository(s.db).ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		slog.InfoContext(ctx, "forgot password requested for non-existent email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	issued, err := s.tokens.Issue(ctx, IssueRequest{Type: model.TokenTypePasswordReset, Email: email})
	if err != nil {
		return err
	}
	if issued.Pending {
		slog.InfoContext(ctx, "password reset already pending", "user_id", user.ID)
		return nil
	}

	err = s.notifier.Notify(ctx, Notification{
		Kind:          model.TokenTypePasswordReset,
		To:            email,
		Token:         issued.Token.Token,
		ExpiresIn:     issued.Token.Lifetime(),
		RecipientName: user.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	slog.InfoContext(ctx, "password reset email sent", "user_id", user.ID)
	return nil
}

// ResetPassword overwrites the password of the token's user. The password is
// validated before the token is looked up.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	err := v.ValidatePassword(password)
	if err != nil {
		return invalid(validation.Errors{"password": err})
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var userID string
	_, err = s.tokens.Consume(ctx, model.TokenTypePasswordReset, token, Effect{
		Apply: func(ctx context.Context, tx *sqlx.Tx, t *model.Token) error {
			users := repository.NewUserRepository(tx)
			u, err := users.ByEmail(ctx, t.Email)
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}
			u.PasswordHash = &hash
			err = users.Update(ctx, u)
			if err != nil {
				return fmt.Errorf("failed to update password: %w", err)
			}
			userID = u.ID
			return nil
		},
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "password reset", "user_id", userID)
	return nil
}

// invalid tags validation failures so the boundary can render them as 400s.
func invalid(err error) error {
	return &InputError{Err: err}
}

// InputError wraps field validation errors and matches ErrInvalidInput.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// familyNameFor names the family created on signup after the member's last name.
func familyNameFor(name string) string {
	parts := strings.Fields(name)
	last := parts[len(parts)-1]
	return cases.Title(language.English).String(last) + " household"
}
