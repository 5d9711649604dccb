package auth

import (
	"chat-hub/errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type nameClaim struct {
	Name string `validate:"required,min=2,max=20"`
}

// Gate validates a claimed display name at connection time, before a
// session exists. It has no side effects.
type Gate struct{}

// Admit checks the claimed name against the admission rules, first
// failure wins: non-empty after trim, length in [2,20], charset
// [a-zA-Z0-9_-], not already in use. On success it returns the trimmed
// name.
//
// The uniqueness check here is advisory only: the registry performs the
// authoritative check-and-insert atomically, so two connections racing on
// the same name cannot both be admitted.
func (Gate) Admit(claimed string, connectedNames []string) (string, error) {
	name := strings.TrimSpace(claimed)
	if name == "" {
		return "", errors.ErrNameRequired
	}
	if err := validate.Struct(nameClaim{Name: name}); err != nil {
		return "", errors.ErrNameLength
	}
	if !isNameCharsetValid(name) {
		return "", errors.ErrNameCharset
	}
	if lo.Contains(connectedNames, name) {
		return "", errors.ErrNameTaken
	}
	return name, nil
}

func isNameCharsetValid(s string) bool {
	for _, char := range s {
		switch {
		case char >= 'a' && char <= 'z':
		case char >= 'A' && char <= 'Z':
		case char >= '0' && char <= '9':
		case char == '_' || char == '-':
		default:
			return false
		}
	}
	return true
}
