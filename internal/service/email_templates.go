package service

import (
	"fmt"
	"time"
)

func greeting(name string) string {
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

// expiryNote renders how long a link stays valid, e.g. "24 hours" or "7 days".
func expiryNote(d time.Duration) string {
	if d <= 0 {
		return "This link can only be used once."
	}
	return fmt.Sprintf("This link expires in %s and can only be used once.", formatWindow(d))
}

func formatWindow(d time.Duration) string {
	day := 24 * time.Hour
	switch {
	case d >= 2*day && d%day == 0:
		return plural(int64(d/day), "day")
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	}
	return d.String()
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func signature(appName, supportEmail string) string {
	sig := fmt.Sprintf("Best,\nThe %s Team", appName)
	if supportEmail != "" {
		sig += fmt.Sprintf("\n\nQuestions? Reply to %s", supportEmail)
	}
	return sig
}

func verifyEmailTemplate(name, verifyURL string, expiresIn time.Duration, appName, supportEmail string) (string, string) {
	subject := fmt.Sprintf("Verify your email for %s", appName)
	body := fmt.Sprintf(`%s

Please confirm your email address by clicking this link:
%s

%s

If you didn't create an account, you can safely ignore this email.

%s`, greeting(name), verifyURL, expiryNote(expiresIn), signature(appName, supportEmail))

	return subject, body
}

func resetPasswordEmailTemplate(name, resetURL string, expiresIn time.Duration, appName, supportEmail string) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`%s

You requested to reset your password. Choose a new one here:
%s

%s

If you didn't request this, you can safely ignore this email. Your password won't be changed.

%s`, greeting(name), resetURL, expiryNote(expiresIn), signature(appName, supportEmail))

	return subject, body
}

func familyInviteEmailTemplate(inviterName, familyName, acceptURL string, expiresIn time.Duration, appName, supportEmail string) (string, string) {
	if inviterName == "" {
		inviterName = "A family member"
	}
	subject := fmt.Sprintf("%s invited you to %s on %s", inviterName, familyName, appName)
	body := fmt.Sprintf(`Hi,

%s invited you to join the %s budget on %s.

Accept the invitation and create your account here:
%s

%s

If you weren't expecting this, you can ignore this email.

%s`, inviterName, familyName, appName, acceptURL, expiryNote(expiresIn), signature(appName, supportEmail))

	return subject, body
}
