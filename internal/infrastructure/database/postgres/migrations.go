package postgres

import (
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

// RunMigrations applies pending SQL migrations from migrationsPath against
// db's underlying connection, bringing tb_de_emissao and tb_de_documento to
// the schema the Document Store Gateway expects.
func RunMigrations(db *gorm.DB, migrationsPath string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errs.NewStoreError("obtain sql.DB handle for migrations", err)
	}

	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return errs.NewStoreError("create migration driver", err)
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return errs.NewStoreError("resolve migrations path", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+absPath, "postgres", driver)
	if err != nil {
		return errs.NewStoreError("initialize migration runner", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errs.NewStoreError("apply migrations", err)
	}
	return nil
}
