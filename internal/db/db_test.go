package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileportal/internal/model"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "portal.db?_foreign_keys=on", sqliteDSN("portal.db"))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN("file::memory:?cache=shared"))
	assert.Equal(t, "file_portal.db?_foreign_keys=on", sqliteDSN(""))
}

func TestMigrate_CreatesAndResetsTables(t *testing.T) {
	gdb, err := Open("sqlite", "file::memory:")
	require.NoError(t, err)

	require.NoError(t, Migrate(gdb, false))
	assert.True(t, gdb.Migrator().HasTable(&model.User{}))
	assert.True(t, gdb.Migrator().HasTable(&model.File{}))

	require.NoError(t, gdb.Create(&model.User{Username: "a", Email: "a@x.io", PasswordHash: "h"}).Error)

	require.NoError(t, Migrate(gdb, true))
	var count int64
	require.NoError(t, gdb.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
