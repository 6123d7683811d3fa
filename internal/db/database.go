package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go SQLite Treiber
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB ist die globale Datenbankverbindung
var DB *gorm.DB

// Initialize öffnet die Datenbank aus der Konfiguration und setzt DB
func Initialize(cfg *config.Config) error {
	conn, err := Open(cfg.DB.File)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open öffnet eine SQLite-Datenbank und führt die Migrationen aus.
// ":memory:" öffnet eine In-Memory-Datenbank.
func Open(file string) (*gorm.DB, error) {
	if file != "" && file != ":memory:" {
		dbDir := filepath.Dir(file)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", file)
	conn, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	// SQLite erlaubt nur einen Schreiber
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	log.Debug("Running database migrations...")
	if err := conn.AutoMigrate(&models.Session{}, &models.Record{}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database connection established successfully")
	return conn, nil
}

// GetDB gibt die initialisierte GORM-DB-Instanz zurück
func GetDB() (*gorm.DB, error) {
	if DB == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	return DB, nil
}

// Close schließt die globale Verbindung
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
