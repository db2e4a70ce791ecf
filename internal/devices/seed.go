package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/types"
)

// seedEntry is one device in a seed file: registration input plus an
// optional non-default status.
type seedEntry struct {
	types.DeviceInput
	Status string `json:"status,omitempty"`
}

// LoadSeedFile registers the devices listed in a JSON seed file. Meant for
// demo fleets and local development; invalid entries abort the load.
func (s *Service) LoadSeedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for _, entry := range entries {
		device, err := s.Register(ctx, entry.DeviceInput)
		if err != nil {
			return fmt.Errorf("failed to seed device %q: %w", entry.Name, err)
		}

		if entry.Status != "" && entry.Status != string(types.StatusOnline) {
			device.Status = types.DeviceStatus(entry.Status)
			if err := s.store.Replace(ctx, device); err != nil {
				return fmt.Errorf("failed to set seeded status for %q: %w", entry.Name, err)
			}
		}
	}

	s.logger.Info("Seed devices loaded",
		zap.String("path", path),
		zap.Int("count", len(entries)))

	return nil
}
