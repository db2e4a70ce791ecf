package storage

import (
	"context"
	"time"

	"github.com/iotsentry/iotsentry/internal/types"
)

// DeviceStore is the persistence contract behind the device registry. The
// default deployment keeps devices in memory for the process lifetime; a
// durable deployment swaps in the Postgres implementation behind the same
// contract.
type DeviceStore interface {
	// Insert adds a new device. IDs are assigned by the caller and must be
	// unique for the lifetime of the store.
	Insert(ctx context.Context, device types.Device) error

	// Get returns the device or types.ErrDeviceNotFound.
	Get(ctx context.Context, id string) (types.Device, error)

	// List returns all devices ordered by registration time.
	List(ctx context.Context) ([]types.Device, error)

	// Replace overwrites the full record of an existing device.
	Replace(ctx context.Context, device types.Device) error

	// SetRisk atomically writes the engine-owned fields (risk score and
	// last-seen timestamp) without touching identity/metadata.
	SetRisk(ctx context.Context, id string, score int, seen time.Time) error

	// Delete removes the device irreversibly.
	Delete(ctx context.Context, id string) error

	Close()
}
