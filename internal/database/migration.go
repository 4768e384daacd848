package database

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	migrationFolder := ms.config.MigrationFolderPath
	if _, err := os.Stat(migrationFolder); err == nil {
		return migrationFolder
	}
	workingDirectory, _ := os.Getwd()
	separator := ""
	if workingDirectory != "/" {
		separator = "/"
	}
	return workingDirectory + separator + migrationFolder
}

// Migrate applies all pending migrations against the given database.
func (ms *MigrationService) Migrate(db DB, databaseName string) error {
	migrationFolder := ms.resolveMigrationFolder()
	if _, err := os.Stat(migrationFolder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}

	driver, err := postgres.WithInstance(db.Unwrap().DB, &postgres.Config{})
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migration driver")
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationFolder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	if migrationErr == nil || migrationErr == migrate.ErrNoChange {
		ms.logger.Info("Database migrations up to date")
		return nil
	}

	version, dirty, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}
	ms.logger.WithError(migrationErr).Errorf("Failed to apply migrations. Database version is dirty=%t at version %d", dirty, version)
	return migrationErr
}
