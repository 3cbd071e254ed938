package service

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/hypecast/kolport/internal/config"
	"github.com/hypecast/kolport/internal/models"
)

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema. Shared with the test database setup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Kol{},
		&models.HistoryAction{},
		&models.Job{},
		&models.TimeSlot{},
		&models.JobQuestion{},
		&models.JobKolHistory{},
		&models.KolJob{},
		&models.KolJobHistory{},
		&models.KolJobAnswer{},
		&models.Invite{},
		&models.InviteHistory{},
		&models.PaymentRequest{},
		&models.MailDispatch{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// lockForUpdate takes a row lock on postgres. The sqlite test driver has no
// FOR UPDATE syntax; its transactions are single-writer, which gives the same
// guarantee under test.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
