package database

import (
	"context"
	"fmt"

	"whatsapp-inbox/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const copyBatchSize = 500

// CopyResult counts rows read from the source per table. Rows that already
// exist in the destination are skipped, so a copy can be re-run.
type CopyResult struct {
	Profiles int
	Contacts int
	Messages int
}

// CopyAll moves profiles, contacts and messages from src into dst, parents first.
func CopyAll(ctx context.Context, src, dst *gorm.DB) (CopyResult, error) {
	var res CopyResult
	var err error

	if res.Profiles, err = copyTable(ctx, src, dst, "profiles", &[]models.Profile{}); err != nil {
		return res, err
	}
	if res.Contacts, err = copyTable(ctx, src, dst, "whatsapp_contacts", &[]models.Contact{}); err != nil {
		return res, err
	}
	if res.Messages, err = copyTable(ctx, src, dst, "whatsapp_messages", &[]models.Message{}); err != nil {
		return res, err
	}
	return res, nil
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB, table string, batch *[]T) (int, error) {
	total := 0
	err := src.WithContext(ctx).FindInBatches(batch, copyBatchSize, func(_ *gorm.DB, _ int) error {
		rows := *batch
		if len(rows) == 0 {
			return nil
		}
		if err := dst.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return err
		}
		total += len(rows)
		return nil
	}).Error
	if err != nil {
		return total, fmt.Errorf("copy %s: %w", table, err)
	}
	log.Info().Str("table", table).Int("rows", total).Msg("Copied table")
	return total, nil
}
