package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewAccountInput_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        NewAccountInput
		allowRole bool
		want      error
	}{
		{"ok", NewAccountInput{Email: "a@x.com", Password: "pw123456"}, false, nil},
		{"missing email", NewAccountInput{Password: "pw123456"}, false, ErrInvalidInput},
		{"short password", NewAccountInput{Email: "a@x.com", Password: "short"}, false, ErrInvalidInput},
		{"password past bcrypt limit", NewAccountInput{Email: "a@x.com", Password: strings.Repeat("p", 73)}, false, ErrInvalidInput},
		{"role on self-service path", NewAccountInput{Email: "a@x.com", Password: "pw123456", Role: ptr(RoleAdmin)}, false, ErrDisallowedField},
		{"role on privileged path", NewAccountInput{Email: "a@x.com", Password: "pw123456", Role: ptr(RoleModerator)}, true, nil},
		{"unknown role", NewAccountInput{Email: "a@x.com", Password: "pw123456", Role: ptr(Role("ROOT"))}, true, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(tt.allowRole)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeStrict_ProfileFields(t *testing.T) {
	t.Parallel()

	decode := func(body string) (ProfileFields, error) {
		var f ProfileFields
		err := DecodeStrict(strings.NewReader(body), &f)
		return f, err
	}

	f, err := decode(`{"email":"b@x.com","displayName":"Bee"}`)
	require.NoError(t, err)
	require.NotNil(t, f.Email)
	assert.Equal(t, "b@x.com", *f.Email)
	assert.Equal(t, "Bee", *f.DisplayName)

	_, err = decode(`{"displayName":"Bee","role":"ADMIN"}`)
	assert.ErrorIs(t, err, ErrDisallowedField)
	assert.Contains(t, err.Error(), "role")

	_, err = decode(`{"deletedAt":null}`)
	assert.ErrorIs(t, err, ErrDisallowedField)

	_, err = decode(``)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = decode(`{"email":1}`)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = decode(`{} {}`)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, ok := ParseRole(" moderator ")
	assert.True(t, ok)
	assert.Equal(t, RoleModerator, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestStoreError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := error(&StoreError{Op: "find", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsStoreError(err))
	assert.False(t, IsStoreError(ErrNotFound))
}
