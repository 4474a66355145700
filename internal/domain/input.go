package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NewAccountInput is the base creation field set plus the optional role that
// only the privileged creation path may carry.
type NewAccountInput struct {
	Email       string
	Password    string
	DisplayName *string
	Role        *Role
}

const (
	MinPasswordLen = 8
	// bcrypt reads at most 72 bytes
	MaxPasswordLen = 72
)

func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLen)
	}
	if len(pw) > MaxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxPasswordLen)
	}
	return nil
}

func (in NewAccountInput) Validate(allowRole bool) error {
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if in.Role != nil {
		if !allowRole {
			return fmt.Errorf("%w: role", ErrDisallowedField)
		}
		if !in.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *in.Role)
		}
	}
	return nil
}

// ProfileFields is everything the self-service profile update accepts.
type ProfileFields struct {
	Email       *string `json:"email" binding:"omitempty,email"`
	DisplayName *string `json:"displayName" binding:"omitempty,max=64"`
}

// DecodeStrict decodes a single JSON object into dst and rejects any field
// dst does not declare.
func DecodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if name, ok := unknownField(err); ok {
			return fmt.Errorf("%w: %s", ErrDisallowedField, name)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidInput)
		}
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidInput)
	}
	return nil
}

// encoding/json reports unknown fields only through the message text.
func unknownField(err error) (string, bool) {
	const prefix = "json: unknown field "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(msg, prefix), `"`), true
}
