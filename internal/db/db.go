package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fileportal/internal/model"
)

// Open returns a connected GORM DB instance for the given driver
// ("sqlite", "mysql" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	if driver == "" || driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY and keeps
		// in-memory databases alive for the lifetime of the pool.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// sqliteDSN turns on foreign key enforcement unless the caller set pragmas.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file_portal.db"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on"
}

// Migrate creates or updates the users and files tables. When reset is set
// the tables are dropped first.
func Migrate(db *gorm.DB, reset bool) error {
	if reset {
		for _, table := range []interface{}{&model.File{}, &model.User{}} {
			if err := db.Migrator().DropTable(table); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
	}
	if err := db.AutoMigrate(&model.User{}, &model.File{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
