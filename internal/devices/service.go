package devices

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/risk"
	"github.com/iotsentry/iotsentry/internal/storage"
	"github.com/iotsentry/iotsentry/internal/types"
)

// Notifier receives registry lifecycle and risk events. Implementations
// must not block; the service calls them inline on the request path.
type Notifier interface {
	DeviceRegistered(device types.Device)
	DeviceUpdated(device types.Device)
	DeviceDeleted(id string)
	RiskScoreUpdated(device types.Device, previous int)
}

// Service owns the device registry. Read operations refresh risk scores
// through the engine before returning; mutations never trigger scoring.
type Service struct {
	store     storage.DeviceStore
	engine    *risk.Engine
	validator *Validator
	notifiers []Notifier
	logger    *zap.Logger
}

func NewService(store storage.DeviceStore, engine *risk.Engine, logger *zap.Logger) (*Service, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create input validator: %w", err)
	}

	return &Service{
		store:     store,
		engine:    engine,
		validator: validator,
		logger:    logger,
	}, nil
}

// AddNotifier registers an event sink (websocket hub, NATS publisher).
func (s *Service) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

// Register creates a new device with a fresh ID, online status and a zero
// risk score. IDs are never reused, deleted or not.
func (s *Service) Register(ctx context.Context, input types.DeviceInput) (types.Device, error) {
	if err := s.validator.Validate(input); err != nil {
		return types.Device{}, err
	}

	now := time.Now().UTC()
	device := types.Device{
		ID:              uuid.NewString(),
		Name:            input.Name,
		DeviceType:      input.DeviceType,
		IPAddress:       input.IPAddress,
		MACAddress:      input.MACAddress,
		Manufacturer:    input.Manufacturer,
		FirmwareVersion: input.FirmwareVersion,
		Status:          types.StatusOnline,
		RiskScore:       0,
		LastSeen:        now,
		RegisteredAt:    now,
	}

	if err := s.store.Insert(ctx, device); err != nil {
		return types.Device{}, fmt.Errorf("failed to register device: %w", err)
	}

	s.logger.Info("Device registered",
		zap.String("device_id", device.ID),
		zap.String("name", device.Name),
		zap.String("device_type", device.DeviceType))

	for _, n := range s.notifiers {
		n.DeviceRegistered(device)
	}

	return device, nil
}

// Get refreshes one device's risk score, then returns it.
func (s *Service) Get(ctx context.Context, id string) (types.Device, error) {
	device, err := s.store.Get(ctx, id)
	if err != nil {
		return types.Device{}, err
	}

	assessment := s.engine.Assess(ctx, device)
	return s.applyAssessment(ctx, device, assessment), nil
}

// List refreshes every device concurrently, then applies the optional
// status/device_type filters. The refresh is unconditional over the full set;
// devices filtered out of the response are still refreshed.
func (s *Service) List(ctx context.Context, filter types.ListFilter) ([]types.Device, error) {
	snapshot, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	assessments := s.engine.AssessAll(ctx, snapshot)
	refreshed := make([]types.Device, 0, len(snapshot))
	for i, device := range snapshot {
		refreshed = append(refreshed, s.applyAssessment(ctx, device, assessments[i]))
	}

	filtered := make([]types.Device, 0, len(refreshed))
	for _, device := range refreshed {
		if filter.Status != "" && string(device.Status) != filter.Status {
			continue
		}
		if filter.DeviceType != "" && device.DeviceType != filter.DeviceType {
			continue
		}
		filtered = append(filtered, device)
	}

	return filtered, nil
}

// Update replaces identity/metadata fields, preserving ID, status,
// registration time and the engine-owned score/last-seen pair. No refresh.
func (s *Service) Update(ctx context.Context, id string, input types.DeviceInput) (types.Device, error) {
	if err := s.validator.Validate(input); err != nil {
		return types.Device{}, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return types.Device{}, err
	}

	merged := current
	merged.Name = input.Name
	merged.DeviceType = input.DeviceType
	merged.IPAddress = input.IPAddress
	merged.MACAddress = input.MACAddress
	merged.Manufacturer = input.Manufacturer
	merged.FirmwareVersion = input.FirmwareVersion

	if err := s.store.Replace(ctx, merged); err != nil {
		return types.Device{}, err
	}

	s.logger.Info("Device updated", zap.String("device_id", id))

	for _, n := range s.notifiers {
		n.DeviceUpdated(merged)
	}

	return merged, nil
}

// Delete removes the device irreversibly.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Device deleted", zap.String("device_id", id))

	for _, n := range s.notifiers {
		n.DeviceDeleted(id)
	}

	return nil
}

// Stats computes the fleet summary from current registry contents. Nothing
// is cached and no refresh is triggered.
func (s *Service) Stats(ctx context.Context) (types.StatsSummary, error) {
	devices, err := s.store.List(ctx)
	if err != nil {
		return types.StatsSummary{}, fmt.Errorf("failed to list devices: %w", err)
	}

	summary := types.StatsSummary{
		TotalDevices: len(devices),
		DeviceTypes:  make(map[string]int),
	}

	scoreSum := 0
	for _, device := range devices {
		switch device.Status {
		case types.StatusOnline:
			summary.OnlineDevices++
		case types.StatusOffline:
			summary.OfflineDevices++
		}

		summary.DeviceTypes[device.DeviceType]++
		scoreSum += device.RiskScore

		switch {
		case device.RiskScore >= types.HighRiskThreshold:
			summary.RiskDistribution.High++
		case device.RiskScore >= types.MediumRiskThreshold:
			summary.RiskDistribution.Medium++
		default:
			summary.RiskDistribution.Low++
		}
	}

	if len(devices) > 0 {
		avg := float64(scoreSum) / float64(len(devices))
		summary.AverageRiskScore = math.Round(avg*100) / 100
	}

	return summary, nil
}

// applyAssessment writes the engine result back to the store and returns
// the refreshed record. A device deleted mid-refresh loses its result.
func (s *Service) applyAssessment(ctx context.Context, device types.Device, a risk.Assessment) types.Device {
	now := time.Now().UTC()

	if err := s.store.SetRisk(ctx, device.ID, a.Score, now); err != nil {
		if !errors.Is(err, types.ErrDeviceNotFound) {
			s.logger.Error("Failed to persist risk score",
				zap.String("device_id", device.ID),
				zap.Error(err))
		}
	}

	previous := device.RiskScore
	device.RiskScore = a.Score
	device.LastSeen = now

	if a.Score != previous {
		for _, n := range s.notifiers {
			n.RiskScoreUpdated(device, previous)
		}
	}

	return device
}
