package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brickdesk/server/internal/models"
)

// UpsertProperties inserts or updates a batch of listings inside the given
// gorm transaction. Identity is (title, community, address); re-imports of
// the same listing update its prices and status instead of duplicating it.
func UpsertProperties(tx *gorm.DB, batch []*models.Property) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range batch {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "title"},
			{Name: "community"},
			{Name: "address"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"district", "city", "status",
			"listed_price", "sold_price", "unit_price", "build_area",
			"rooms", "floor", "year_built",
			"listed_at", "sold_at", "updated_at",
		}),
	}).Create(&batch).Error
}
