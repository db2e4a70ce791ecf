package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iotsentry/iotsentry/internal/types"
)

// MemoryStore is the default, process-lifetime device store. A readers-writer
// lock serialises mutations against concurrent listing; refresh writes go
// through SetRisk so no observer sees a half-written record.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]types.Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[string]types.Device),
	}
}

func (s *MemoryStore) Insert(_ context.Context, device types.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[device.ID]; exists {
		return fmt.Errorf("device %s already exists", device.ID)
	}

	s.devices[device.ID] = device
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, exists := s.devices[id]
	if !exists {
		return types.Device{}, types.ErrDeviceNotFound
	}
	return device, nil
}

func (s *MemoryStore) List(_ context.Context) ([]types.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]types.Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, device)
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RegisteredAt.Equal(devices[j].RegisteredAt) {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].RegisteredAt.Before(devices[j].RegisteredAt)
	})

	return devices, nil
}

func (s *MemoryStore) Replace(_ context.Context, device types.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[device.ID]; !exists {
		return types.ErrDeviceNotFound
	}

	s.devices[device.ID] = device
	return nil
}

func (s *MemoryStore) SetRisk(_ context.Context, id string, score int, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, exists := s.devices[id]
	if !exists {
		// Device was deleted while its refresh was in flight; drop the result.
		return types.ErrDeviceNotFound
	}

	device.RiskScore = score
	device.LastSeen = seen
	s.devices[id] = device
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[id]; !exists {
		return types.ErrDeviceNotFound
	}

	delete(s.devices, id)
	return nil
}

func (s *MemoryStore) Close() {}
