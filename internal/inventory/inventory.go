// Package inventory holds the item containers the reconciler and the shop
// settlement read and mutate: player purses and shop stock. Items are
// identified by tag and counted in units.
package inventory

import (
	"context"
	"errors"
)

// ErrNotEnoughUnits is returned when a removal asks for more than is held
var ErrNotEnoughUnits = errors.New("not enough units")

// ErrNoSpace is returned when a deposit exceeds the container capacity
var ErrNoSpace = errors.New("no space for units")

// Inventory is a container of counted items
type Inventory interface {
	CountUnitsOf(ctx context.Context, tag string) (int64, error)
	// RemoveUnits takes count units of tag; it fails without change if fewer are held
	RemoveUnits(ctx context.Context, tag string, count int64) error
	// DepositUnits adds count units of tag
	DepositUnits(ctx context.Context, tag string, count int64) error
}

// Bounded is implemented by containers with limited room
type Bounded interface {
	// FreeSpaceFor returns how many more units of tag fit
	FreeSpaceFor(ctx context.Context, tag string) (int64, error)
}

// FreeSpace returns the room left for tag, or -1 when the container is unbounded
func FreeSpace(ctx context.Context, inv Inventory, tag string) (int64, error) {
	b, ok := inv.(Bounded)
	if !ok {
		return -1, nil
	}
	return b.FreeSpaceFor(ctx, tag)
}

// HasRoom reports whether count more units of tag fit into inv
func HasRoom(ctx context.Context, inv Inventory, tag string, count int64) (bool, error) {
	free, err := FreeSpace(ctx, inv, tag)
	if err != nil {
		return false, err
	}
	return free < 0 || free >= count, nil
}
