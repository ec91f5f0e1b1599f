package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,notblank,max=10"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     signup
		fields []string
	}{
		{name: "valid", in: signup{Email: "ada@example.com", Password: "correct-horse", Name: "Ada"}},
		{name: "display name form", in: signup{Email: "Bob <bob@example.com>", Password: "correct-horse", Name: "Bob"}, fields: []string{"email"}},
		{name: "missing email", in: signup{Password: "correct-horse", Name: "Ada"}, fields: []string{"email"}},
		{name: "short password", in: signup{Email: "ada@example.com", Password: "short", Name: "Ada"}, fields: []string{"password"}},
		{name: "blank name", in: signup{Email: "ada@example.com", Password: "correct-horse", Name: "   "}, fields: []string{"name"}},
		{name: "long name", in: signup{Email: "ada@example.com", Password: "correct-horse", Name: "Adalovelace"}, fields: []string{"name"}},
		{name: "everything", in: signup{}, fields: []string{"email", "password", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *Error
			require.True(t, errors.As(err, &verr), "%v", err)
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "short", Name: "Ada"})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email address; password must be at least 8 characters", err.Error())
}

func TestInviteCode(t *testing.T) {
	assert.NoError(t, Var("ABCD2345", "invitecode"))
	for _, code := range []string{"ABCD234", "ABCD23456", "ABCD2340", "ABCD2341", "ABCDI234", "ABCDO234", "abcd2345", "ABCD-234"} {
		assert.Error(t, Var(code, "invitecode"), code)
	}
}
