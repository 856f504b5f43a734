package validation

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var NameRules = []validation.Rule{
	validation.By(nameRule),
}

func nameRule(value interface{}) error {
	s, _ := value.(string)
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return errors.New("name is required")
	}
	if len([]rune(trimmed)) > 100 {
		return errors.New("name is too long (max 100 characters)")
	}
	return nil
}

// ValidateName validates a display or family name
func ValidateName(name string) error {
	return validation.Validate(name, NameRules...)
}
