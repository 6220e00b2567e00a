package main

import (
	"context"
	"flag"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/logger"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// migrate brings the configured database schema up to date and, with -from,
// copies a local sqlite database into it.
func main() {
	from := flag.String("from", "", "sqlite file to copy profiles, contacts and messages from")
	flag.Parse()

	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	dst, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to destination database")
	}
	if err := database.Migrate(dst); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate destination schema")
	}

	if *from == "" {
		return
	}

	src, err := gorm.Open(sqlite.Open(*from), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Str("path", *from).Msg("Failed to open SQLite source")
	}
	log.Info().Str("path", *from).Msg("Connected to SQLite source")

	res, err := database.CopyAll(context.Background(), src, dst)
	if err != nil {
		log.Fatal().Err(err).Msg("Data copy failed")
	}
	log.Info().
		Int("profiles", res.Profiles).
		Int("contacts", res.Contacts).
		Int("messages", res.Messages).
		Msg("Migration completed")
}
