package auth

import (
	"errors"
	"regexp"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,31}$`)

var ErrInvalidUsername = errors.New("username must be 2 to 32 letters, digits, '.', '_' or '-', starting with a letter or digit")

// ValidateUsername checks a username before a user is created.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}
