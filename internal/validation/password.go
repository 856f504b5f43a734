package validation

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	PasswordMinLength = 6
	// bcrypt silently truncates passwords longer than 72 bytes
	PasswordMaxBytes = 72
)

var PasswordRules = []validation.Rule{
	validation.Required.Error("password is required"),
	validation.RuneLength(PasswordMinLength, 0).Error("password must be at least 6 characters"),
	validation.By(maxBytes),
}

func maxBytes(value interface{}) error {
	s, _ := value.(string)
	if len(s) > PasswordMaxBytes {
		return errors.New("password must not exceed 72 bytes")
	}
	return nil
}

func ValidatePassword(password string) error {
	return validation.Validate(password, PasswordRules...)
}
