package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

type menuFields struct {
	StoreID     uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       float64
	Available   bool
}

func decodeMenuSnapshot(snap history.Snapshot) (menuFields, error) {
	var f menuFields

	storeID, ok := snapUUID(snap, "storeId")
	if !ok {
		return f, invalidSnapshot(history.KindMenu, "storeId")
	}
	categoryID, ok := snapUUID(snap, "categoryId")
	if !ok {
		return f, invalidSnapshot(history.KindMenu, "categoryId")
	}
	name, ok := snapString(snap, "name")
	if !ok || name == "" {
		return f, invalidSnapshot(history.KindMenu, "name")
	}
	price, ok := snapFloat(snap, "price")
	if !ok || price < 0 {
		return f, invalidSnapshot(history.KindMenu, "price")
	}

	f.StoreID = storeID
	f.CategoryID = categoryID
	f.Name = name
	f.Price = price
	f.Description, _ = snapString(snap, "description")
	if avail, ok := snapBool(snap, "available"); ok {
		f.Available = avail
	} else {
		f.Available = true
	}
	return f, nil
}

type menuAdapter struct{}

func (menuAdapter) Recreate(ctx context.Context, tx *gorm.DB, snap history.Snapshot) (uuid.UUID, error) {
	f, err := decodeMenuSnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}

	if exists, err := rowExists(ctx, tx, &Category{}, f.CategoryID); err != nil {
		return uuid.Nil, err
	} else if !exists {
		return uuid.Nil, fmt.Errorf("%w: category %s for menu no longer exists", history.ErrConflict, f.CategoryID)
	}

	id := recreateID(snap)
	if exists, err := rowExists(ctx, tx, &Menu{}, id); err != nil {
		return uuid.Nil, err
	} else if exists {
		id = uuid.New()
	}

	model := Menu{
		ID:          id,
		StoreID:     f.StoreID,
		CategoryID:  f.CategoryID,
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Available:   f.Available,
	}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (menuAdapter) Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap history.Snapshot) error {
	f, err := decodeMenuSnapshot(snap)
	if err != nil {
		return err
	}

	var existing Menu
	if err := fetchForRestore(ctx, tx, &existing, history.KindMenu, entityID); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"category_id": f.CategoryID,
		"name":        f.Name,
		"description": f.Description,
		"price":       f.Price,
		"available":   f.Available,
	}).Error
}

func (menuAdapter) Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error {
	return removeRow(ctx, tx, &Menu{}, history.KindMenu, entityID)
}
