package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/householdhq/budget/internal/model"
	"github.com/resend/resend-go/v2"
)

// Notification is a transactional email carrying a token deep link.
// Kind is one of the model.TokenType* values.
type Notification struct {
	Kind          string
	To            string
	Token         string
	ExpiresIn     time.Duration
	RecipientName string
	InviterName   string
	FamilyName    string
}

// Notifier dispatches transactional email. A single attempt is made.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

type EmailService struct {
	client       *resend.Client
	ses          *ses.Client
	fromEmail    string
	supportEmail string
	isDev        bool
	appURL       string
	appName      string
	timeout      time.Duration
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool, timeout time.Duration) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
		timeout:   timeout,
	}
}

// WithSES routes outgoing mail through Amazon SES instead of Resend.
// The sender address must be verified with SES.
func (s *EmailService) WithSES(client *ses.Client) *EmailService {
	s.ses = client
	return s
}

// WithSupportEmail adds a contact address to the footer of every email.
func (s *EmailService) WithSupportEmail(address string) *EmailService {
	s.supportEmail = address
	return s
}

// LinkFor builds the deep link embedded in the email for a token kind.
func (s *EmailService) LinkFor(kind, token string) (string, error) {
	var path string
	switch kind {
	case model.TokenTypeEmailVerify:
		path = "/verify-email"
	case model.TokenTypePasswordReset:
		path = "/reset-password"
	case model.TokenTypeFamilyInvite:
		path = "/accept-invite"
	default:
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
	return fmt.Sprintf("%s%s?token=%s", s.appURL, path, url.QueryEscape(token)), nil
}

func (s *EmailService) Notify(ctx context.Context, n Notification) error {
	link, err := s.LinkFor(n.Kind, n.Token)
	if err != nil {
		return err
	}

	var subject, body string
	switch n.Kind {
	case model.TokenTypeEmailVerify:
		subject, body = verifyEmailTemplate(n.RecipientName, link, n.ExpiresIn, s.appName, s.supportEmail)
	case model.TokenTypePasswordReset:
		subject, body = resetPasswordEmailTemplate(n.RecipientName, link, n.ExpiresIn, s.appName, s.supportEmail)
	case model.TokenTypeFamilyInvite:
		subject, body = familyInviteEmailTemplate(n.InviterName, n.FamilyName, link, n.ExpiresIn, s.appName, s.supportEmail)
	}

	if s.isDev {
		slog.InfoContext(ctx, "email sent (dev mode)", "type", n.Kind, "to", n.To, "subject", subject, "url", link)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.ses != nil {
		err = s.sendSES(sendCtx, n.To, subject, body)
	} else {
		err = s.sendResend(sendCtx, n.To, subject, body)
	}
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", n.Kind, err)
	}

	slog.InfoContext(ctx, "email sent", "type", n.Kind, "to", n.To)
	return nil
}

func (s *EmailService) sendResend(ctx context.Context, to, subject, body string) error {
	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	return err
}

func (s *EmailService) sendSES(ctx context.Context, to, subject, body string) error {
	_, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.fromEmail),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	return err
}
