package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/services/history"
)

type orderFields struct {
	StoreID     uuid.UUID
	TableID     uuid.UUID
	OrderNumber string
	Status      string
	TotalAmount float64
}

var orderStatuses = map[string]bool{
	"pending":   true,
	"confirmed": true,
	"preparing": true,
	"served":    true,
	"completed": true,
	"cancelled": true,
}

func decodeOrderSnapshot(snap history.Snapshot) (orderFields, error) {
	var f orderFields

	storeID, ok := snapUUID(snap, "storeId")
	if !ok {
		return f, invalidSnapshot(history.KindOrderStatus, "storeId")
	}
	orderNumber, ok := snapString(snap, "orderNumber")
	if !ok || orderNumber == "" {
		return f, invalidSnapshot(history.KindOrderStatus, "orderNumber")
	}
	status, ok := snapString(snap, "status")
	if !ok || !orderStatuses[status] {
		return f, invalidSnapshot(history.KindOrderStatus, "status")
	}

	f.StoreID = storeID
	f.OrderNumber = orderNumber
	f.Status = status
	f.TableID, _ = snapUUID(snap, "tableId")
	f.TotalAmount, _ = snapFloat(snap, "totalAmount")
	return f, nil
}

// orderStatusAdapter reverses order lifecycle mutations. Restoring an order
// rewinds its status fields; recreating one brings a cancelled-and-purged
// order row back from its snapshot.
type orderStatusAdapter struct{}

func (orderStatusAdapter) Recreate(ctx context.Context, tx *gorm.DB, snap history.Snapshot) (uuid.UUID, error) {
	f, err := decodeOrderSnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}

	id := recreateID(snap)
	if exists, err := rowExists(ctx, tx, &Order{}, id); err != nil {
		return uuid.Nil, err
	} else if exists {
		id = uuid.New()
	}

	model := Order{
		ID:          id,
		StoreID:     f.StoreID,
		TableID:     f.TableID,
		OrderNumber: f.OrderNumber,
		Status:      f.Status,
		TotalAmount: f.TotalAmount,
	}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (orderStatusAdapter) Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap history.Snapshot) error {
	f, err := decodeOrderSnapshot(snap)
	if err != nil {
		return err
	}

	var existing Order
	if err := fetchForRestore(ctx, tx, &existing, history.KindOrderStatus, entityID); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"status":       f.Status,
		"total_amount": f.TotalAmount,
	}).Error
}

func (orderStatusAdapter) Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error {
	return removeRow(ctx, tx, &Order{}, history.KindOrderStatus, entityID)
}
