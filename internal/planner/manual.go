package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
)

// ManualEditor is the single-slot edit path. It shares the batch path's
// deadline and target-time logic but operates on one slot at a time.
type ManualEditor struct {
	client catering.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewManualEditor creates an editor over the given client.
func NewManualEditor(client catering.Client, logger *zap.Logger) *ManualEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManualEditor{client: client, log: logger, now: time.Now}
}

// CanModify reports whether the slot is still within its modification window.
func (m *ManualEditor) CanModify(slot catering.Slot) bool {
	return slot.Editable(m.now())
}

// Place puts a new order on an empty slot.
func (m *ManualEditor) Place(ctx context.Context, slot catering.Slot, dishID, addressID string) (string, error) {
	if !m.CanModify(slot) {
		return "", ErrSlotClosed
	}
	return m.client.PlaceOrder(ctx, catering.PlaceOrderRequest{
		Channel:       slot.Channel,
		DishID:        dishID,
		TargetTime:    catering.TargetTime(slot.Period),
		CorpAddressID: addressID,
		UserAddressID: addressID,
	})
}

// Replace swaps the slot's existing order for a new dish. There is no atomic
// update upstream: the existing order is deleted first, then the new one is
// placed. If the second step fails the slot is left empty, which callers must
// surface to the user as a known risk.
func (m *ManualEditor) Replace(ctx context.Context, slot catering.Slot, dishID, addressID string) (string, error) {
	if !m.CanModify(slot) {
		return "", ErrSlotClosed
	}
	if slot.OrderID != "" {
		if err := m.client.DeleteOrder(ctx, slot.OrderID); err != nil {
			return "", fmt.Errorf("remove existing order: %w", err)
		}
	}

	orderID, err := m.client.PlaceOrder(ctx, catering.PlaceOrderRequest{
		Channel:       slot.Channel,
		DishID:        dishID,
		TargetTime:    catering.TargetTime(slot.Period),
		CorpAddressID: addressID,
		UserAddressID: addressID,
	})
	if err != nil {
		m.log.Error("replacement order failed after delete",
			zap.String("date", slot.Date), zap.String("period", string(slot.Period)), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrSlotLeftEmpty, err)
	}
	return orderID, nil
}

// Delete removes the slot's current order. Failures are surfaced to the
// caller, never swallowed.
func (m *ManualEditor) Delete(ctx context.Context, slot catering.Slot) error {
	if !m.CanModify(slot) {
		return ErrSlotClosed
	}
	if slot.OrderID == "" {
		return fmt.Errorf("slot %s %s has no order to delete", slot.Date, slot.Period)
	}
	return m.client.DeleteOrder(ctx, slot.OrderID)
}
