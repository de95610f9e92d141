package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/karatcart/internal/models"
)

// Gorm stores entries in the cache_entries table.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an initialized gorm connection. The CacheEntry table must be
// migrated beforehand (database.Connect does this).
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Get(ctx context.Context, key string) (string, error) {
	var entry models.CacheEntry
	if err := g.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("load cache entry %q: %w", key, err)
	}
	return entry.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key, value string) error {
	entry := models.CacheEntry{Key: key, Value: value}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save cache entry %q: %w", key, err)
	}
	return nil
}
