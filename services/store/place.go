package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

type placeFields struct {
	StoreID  uuid.UUID
	Name     string
	Position int
}

func decodePlaceSnapshot(snap history.Snapshot) (placeFields, error) {
	var f placeFields

	storeID, ok := snapUUID(snap, "storeId")
	if !ok {
		return f, invalidSnapshot(history.KindPlace, "storeId")
	}
	name, ok := snapString(snap, "name")
	if !ok || name == "" {
		return f, invalidSnapshot(history.KindPlace, "name")
	}

	f.StoreID = storeID
	f.Name = name
	f.Position, _ = snapInt(snap, "position")
	return f, nil
}

type placeAdapter struct{}

func (placeAdapter) Recreate(ctx context.Context, tx *gorm.DB, snap history.Snapshot) (uuid.UUID, error) {
	f, err := decodePlaceSnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}

	id := recreateID(snap)
	if exists, err := rowExists(ctx, tx, &Place{}, id); err != nil {
		return uuid.Nil, err
	} else if exists {
		id = uuid.New()
	}

	model := Place{ID: id, StoreID: f.StoreID, Name: f.Name, Position: f.Position}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (placeAdapter) Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap history.Snapshot) error {
	f, err := decodePlaceSnapshot(snap)
	if err != nil {
		return err
	}

	var existing Place
	if err := fetchForRestore(ctx, tx, &existing, history.KindPlace, entityID); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"name":     f.Name,
		"position": f.Position,
	}).Error
}

func (placeAdapter) Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error {
	return removeRow(ctx, tx, &Place{}, history.KindPlace, entityID)
}
