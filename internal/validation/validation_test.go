package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/model"
)

func validInput() model.RegisterInput {
	return model.RegisterInput{
		Email:     "ada@example.com",
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, New().Struct(validInput()))
}

func TestStruct_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.RegisterInput)
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing email",
			mutate:    func(in *model.RegisterInput) { in.Email = "" },
			wantField: "email",
			wantMsg:   "email is required",
		},
		{
			name:      "malformed email",
			mutate:    func(in *model.RegisterInput) { in.Email = "not-an-email" },
			wantField: "email",
			wantMsg:   "email must be a valid email address",
		},
		{
			name:      "short password",
			mutate:    func(in *model.RegisterInput) { in.Password = "short" },
			wantField: "password",
			wantMsg:   "password must be at least 8 characters",
		},
		{
			name:      "password over bcrypt limit",
			mutate:    func(in *model.RegisterInput) { in.Password = strings.Repeat("x", 73) },
			wantField: "password",
			wantMsg:   "password must be 72 bytes or less",
		},
		{
			name:      "multi-byte password over bcrypt limit",
			mutate:    func(in *model.RegisterInput) { in.Password = strings.Repeat("é", 40) },
			wantField: "password",
			wantMsg:   "password must be 72 bytes or less",
		},
		{
			name:      "missing last name",
			mutate:    func(in *model.RegisterInput) { in.LastName = "" },
			wantField: "lastName",
			wantMsg:   "lastName is required",
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := v.Struct(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestStruct_NonStruct(t *testing.T) {
	err := New().Struct("just a string")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
