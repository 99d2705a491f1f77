package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"millstock/internal/core/apperror"
)

func TestIsStorageErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil",
			err:  nil,
			want: false,
		},
		{
			name: "connect error",
			err:  fmt.Errorf("begin transaction: %w", &pgconn.ConnectError{Config: &pgconn.Config{}}),
			want: true,
		},
		{
			name: "connection failure sqlstate 08006",
			err:  fmt.Errorf("begin transaction: %w", &pgconn.PgError{Code: "08006"}),
			want: true,
		},
		{
			name: "connection does not exist sqlstate 08003",
			err:  &pgconn.PgError{Code: "08003"},
			want: true,
		},
		{
			name: "statement timeout sqlstate 57014",
			err:  fmt.Errorf("insert lot: %w", &pgconn.PgError{Code: "57014"}),
			want: true,
		},
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("commit transaction: %w", context.DeadlineExceeded),
			want: true,
		},
		{
			name: "serialization failure stays untouched for the 40001 mapping",
			err:  &pgconn.PgError{Code: "40001"},
			want: false,
		},
		{
			name: "unique violation is a business concern",
			err:  &pgconn.PgError{Code: "23505"},
			want: false,
		},
		{
			name: "app error is never reclassified",
			err:  apperror.NewNotFound("load", "x"),
			want: false,
		},
		{
			name: "app error wrapping a connection failure is never reclassified",
			err:  apperror.NewConcurrentModification("lot", "x").WithCause(&pgconn.PgError{Code: "08006"}),
			want: false,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("build query: boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isStorageErr(tt.err))
		})
	}
}

func TestIsStorageErrMapsToServiceUnavailable(t *testing.T) {
	cause := &pgconn.PgError{Code: "08006"}
	err := apperror.NewStorage(fmt.Errorf("begin transaction: %w", cause))

	appErr, ok := apperror.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.CodeStorage, appErr.Code)
	assert.Equal(t, 503, appErr.HTTPStatus)
}
