package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"postgres serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"postgres deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"gorm duplicate", gorm.ErrDuplicatedKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSerializationFailure(tt.err))
		})
	}
}

func TestUserRepository_WithTransactionMarksSerializationFailure(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	aborted := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx UserRepository) error {
		return aborted
	})

	assert.ErrorIs(t, err, ErrSerialization)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestSerializable(t *testing.T) {
	assert.Nil(t, serializable(newTestDB(t)))
}
