package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

type tableFields struct {
	StoreID        uuid.UUID
	PlaceID        uuid.UUID
	Name           string
	Capacity       int
	Status         string
	NumberOfPeople int
}

func decodeTableSnapshot(snap history.Snapshot) (tableFields, error) {
	var f tableFields

	storeID, ok := snapUUID(snap, "storeId")
	if !ok {
		return f, invalidSnapshot(history.KindTable, "storeId")
	}
	placeID, ok := snapUUID(snap, "placeId")
	if !ok {
		return f, invalidSnapshot(history.KindTable, "placeId")
	}
	name, ok := snapString(snap, "name")
	if !ok || name == "" {
		return f, invalidSnapshot(history.KindTable, "name")
	}
	capacity, ok := snapInt(snap, "capacity")
	if !ok || capacity <= 0 {
		return f, invalidSnapshot(history.KindTable, "capacity")
	}

	f.StoreID = storeID
	f.PlaceID = placeID
	f.Name = name
	f.Capacity = capacity
	f.Status, _ = snapString(snap, "status")
	if f.Status == "" {
		f.Status = "empty"
	}
	f.NumberOfPeople, _ = snapInt(snap, "numberOfPeople")
	return f, nil
}

type tableAdapter struct{}

func (tableAdapter) Recreate(ctx context.Context, tx *gorm.DB, snap history.Snapshot) (uuid.UUID, error) {
	f, err := decodeTableSnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}

	// A table cannot come back without its place.
	if exists, err := rowExists(ctx, tx, &Place{}, f.PlaceID); err != nil {
		return uuid.Nil, err
	} else if !exists {
		return uuid.Nil, fmt.Errorf("%w: place %s for table no longer exists", history.ErrConflict, f.PlaceID)
	}

	id := recreateID(snap)
	if exists, err := rowExists(ctx, tx, &Table{}, id); err != nil {
		return uuid.Nil, err
	} else if exists {
		id = uuid.New()
	}

	model := Table{
		ID:             id,
		StoreID:        f.StoreID,
		PlaceID:        f.PlaceID,
		Name:           f.Name,
		Capacity:       f.Capacity,
		Status:         f.Status,
		NumberOfPeople: f.NumberOfPeople,
	}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (tableAdapter) Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap history.Snapshot) error {
	f, err := decodeTableSnapshot(snap)
	if err != nil {
		return err
	}

	var existing Table
	if err := fetchForRestore(ctx, tx, &existing, history.KindTable, entityID); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"place_id":         f.PlaceID,
		"name":             f.Name,
		"capacity":         f.Capacity,
		"status":           f.Status,
		"number_of_people": f.NumberOfPeople,
	}).Error
}

func (tableAdapter) Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error {
	return removeRow(ctx, tx, &Table{}, history.KindTable, entityID)
}
