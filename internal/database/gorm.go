package database

import (
	"fmt"
	"strings"
	"time"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured driver. Postgres is the hosted store; sqlite
// is used for local runs.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.DBDriver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DBPath + "?_busy_timeout=5000&_foreign_keys=on")
	case "postgres", "postgresql", "":
		dialector = postgres.Open(PostgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("Connected to database")
	return db, nil
}

func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

func gormConfig(level string) *gorm.Config {
	mode := logger.Warn
	if strings.EqualFold(level, "debug") {
		mode = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(mode),
		TranslateError: true,
	}
}

// Migrate creates or updates the profile, contact and message tables along
// with their uniqueness constraints.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Contact{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log.Info().Msg("Database migration completed")
	return nil
}
