package database

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool { return true }

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationService applies the SQL migrations under a folder to the
// database before the service starts taking traffic.
type MigrationService struct {
	folder string
	logger ectologger.Logger
}

func NewMigrationService(folder string, logger ectologger.Logger) *MigrationService {
	return &MigrationService{folder: folder, logger: logger}
}

func (ms *MigrationService) resolveFolder() string {
	if _, err := os.Stat(ms.folder); err == nil {
		return ms.folder
	}
	wd, _ := os.Getwd()
	return wd + "/" + ms.folder
}

// Migrate runs every pending migration. A database already at the
// latest version is not an error.
func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) error {
	folder := ms.resolveFolder()
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("migration folder %s does not exist: %w", folder, err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("failed to create migrate instance")
		return err
	}
	m.Log = migrationLogger{Logger: ms.logger}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			ms.logger.Info("no new migrations to apply")
			return nil
		}
		version, dirty, _ := m.Version()
		ms.logger.WithError(err).Errorf("migration failed at version %d (dirty=%t)", version, dirty)
		return err
	}
	ms.logger.Info("migrations applied")
	return nil
}
