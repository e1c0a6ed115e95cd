package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

// InitDatabase opens the PostgreSQL-backed GORM handle for the Document
// Store Gateway (C5). The handle is returned directly rather than stashed in
// a package-level variable: the worker owns one explicit Store instance for
// its lifetime (see DESIGN.md).
func InitDatabase(dsn string, env string) (*gorm.DB, error) {
	level := gormlogger.Info
	if env == "production" {
		level = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errs.NewStoreError("connect to database", err)
	}
	return db, nil
}
