package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrSerialization marks a transaction the database rolled back because it
// conflicted with a concurrent one.
var ErrSerialization = errors.New("transaction serialization failure")

const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// serializable returns the transaction options for db. sqlite runs on a
// single connection and is serial already.
func serializable(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
}

func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
