package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCursorRepository stores the settlement cursor in the state table
type GormCursorRepository struct {
	db *gorm.DB
}

// NewGormCursorRepository creates a new GormCursorRepository
func NewGormCursorRepository(db *gorm.DB) *GormCursorRepository {
	return &GormCursorRepository{db: db}
}

// Get returns the stored cursor; a missing row reads as 0
func (r *GormCursorRepository) Get(ctx context.Context) (uint64, error) {
	var model models.StateModel
	err := r.db.WithContext(ctx).
		Where(map[string]any{"key": settlement.CursorKey}).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read settlement cursor: %w", err)
	}
	idx, err := strconv.ParseUint(model.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse settlement cursor %q: %w", model.Value, err)
	}
	return idx, nil
}

// Advance stores index, refusing to move the cursor backwards
func (r *GormCursorRepository) Advance(ctx context.Context, index uint64) error {
	current, err := r.Get(ctx)
	if err != nil {
		return err
	}
	if index < current {
		return fmt.Errorf("%w: stored %d, requested %d", settlement.ErrCursorRegression, current, index)
	}

	model := models.StateModel{
		Key:       settlement.CursorKey,
		Value:     strconv.FormatUint(index, 10),
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("write settlement cursor: %w", err)
	}
	return nil
}

var _ settlement.CursorRepository = (*GormCursorRepository)(nil)
