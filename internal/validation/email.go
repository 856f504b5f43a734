package validation

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/text/unicode/norm"
)

// EmailRules validates an email field. RFC 5321 caps the address at 254 characters.
var EmailRules = []validation.Rule{
	validation.Required.Error("email address is required"),
	validation.Length(0, 254).Error("email address is too long (max 254 characters)"),
	is.Email.Error("invalid email address format"),
}

// NormalizeEmail is the single canonical form used for storage and lookups:
// surrounding whitespace removed, Unicode NFC, lower case.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

func ValidateEmail(email string) error {
	return validation.Validate(email, EmailRules...)
}
