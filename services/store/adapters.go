package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

// RegisterAll binds every supported entity kind to its adapter. Called once
// at process start; duplicate registration surfaces as a wiring error.
func RegisterAll(reg *history.Registry) error {
	adapters := map[history.EntityKind]history.EntityAdapter{
		history.KindPlace:       placeAdapter{},
		history.KindTable:       tableAdapter{},
		history.KindCategory:    categoryAdapter{},
		history.KindMenu:        menuAdapter{},
		history.KindOrderStatus: orderStatusAdapter{},
	}
	for kind, adapter := range adapters {
		if err := reg.Register(kind, adapter); err != nil {
			return err
		}
	}
	return nil
}

func rowExists(ctx context.Context, tx *gorm.DB, model any, id uuid.UUID) (bool, error) {
	var n int64
	if err := tx.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// fetchForRestore loads the row an update-undo wants to rewrite. A missing
// row means the entity was concurrently deleted; restoration is impossible
// and the journal entry must stay undoable.
func fetchForRestore(ctx context.Context, tx *gorm.DB, dest any, kind history.EntityKind, id uuid.UUID) error {
	err := tx.WithContext(ctx).Where("id = ?", id).First(dest).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s %s no longer exists", history.ErrConflict, kind, id)
	case err != nil:
		return err
	}
	return nil
}

// removeRow deletes the row a create-undo targets. Zero rows affected means
// someone else already deleted it, which is a conflict, not a success.
func removeRow(ctx context.Context, tx *gorm.DB, model any, kind history.EntityKind, id uuid.UUID) error {
	res := tx.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s already removed", history.ErrConflict, kind, id)
	}
	return nil
}
