package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

type categoryFields struct {
	StoreID   uuid.UUID
	Name      string
	Color     string
	SortOrder int
}

func decodeCategorySnapshot(snap history.Snapshot) (categoryFields, error) {
	var f categoryFields

	storeID, ok := snapUUID(snap, "storeId")
	if !ok {
		return f, invalidSnapshot(history.KindCategory, "storeId")
	}
	name, ok := snapString(snap, "name")
	if !ok || name == "" {
		return f, invalidSnapshot(history.KindCategory, "name")
	}

	f.StoreID = storeID
	f.Name = name
	f.Color, _ = snapString(snap, "color")
	f.SortOrder, _ = snapInt(snap, "sortOrder")
	return f, nil
}

type categoryAdapter struct{}

func (categoryAdapter) Recreate(ctx context.Context, tx *gorm.DB, snap history.Snapshot) (uuid.UUID, error) {
	f, err := decodeCategorySnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}

	id := recreateID(snap)
	if exists, err := rowExists(ctx, tx, &Category{}, id); err != nil {
		return uuid.Nil, err
	} else if exists {
		id = uuid.New()
	}

	model := Category{ID: id, StoreID: f.StoreID, Name: f.Name, Color: f.Color, SortOrder: f.SortOrder}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (categoryAdapter) Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap history.Snapshot) error {
	f, err := decodeCategorySnapshot(snap)
	if err != nil {
		return err
	}

	var existing Category
	if err := fetchForRestore(ctx, tx, &existing, history.KindCategory, entityID); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"name":       f.Name,
		"color":      f.Color,
		"sort_order": f.SortOrder,
	}).Error
}

func (categoryAdapter) Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error {
	return removeRow(ctx, tx, &Category{}, history.KindCategory, entityID)
}
