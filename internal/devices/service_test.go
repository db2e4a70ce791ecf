package devices

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/alertstore"
	"github.com/iotsentry/iotsentry/internal/risk"
	"github.com/iotsentry/iotsentry/internal/storage"
	"github.com/iotsentry/iotsentry/internal/types"
)

type fakeSource struct {
	mu         sync.Mutex
	alertsByIP map[string][]alertstore.Alert
	err        error
	queriedIPs []string
}

func (f *fakeSource) AlertsBySourceIP(_ context.Context, ip string, _ time.Duration) ([]alertstore.Alert, error) {
	f.mu.Lock()
	f.queriedIPs = append(f.queriedIPs, ip)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.alertsByIP[ip], nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	registered []string
	updated    []string
	deleted    []string
	riskEvents []string
}

func (r *recordingNotifier) DeviceRegistered(d types.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, d.ID)
}

func (r *recordingNotifier) DeviceUpdated(d types.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, d.ID)
}

func (r *recordingNotifier) DeviceDeleted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

func (r *recordingNotifier) RiskScoreUpdated(d types.Device, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.riskEvents = append(r.riskEvents, d.ID)
}

func newTestService(t *testing.T, source alertstore.Source) *Service {
	t.Helper()
	engine := risk.NewEngine(source, 24*time.Hour, 4, zap.NewNop())
	service, err := NewService(storage.NewMemoryStore(), engine, zap.NewNop())
	require.NoError(t, err)
	return service
}

func sensorInput(name, ip string) types.DeviceInput {
	return types.DeviceInput{
		Name:       name,
		DeviceType: "sensor",
		IPAddress:  ip,
	}
}

func TestRegister_Defaults(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	device, err := service.Register(context.Background(), sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	assert.NotEmpty(t, device.ID)
	assert.Equal(t, types.StatusOnline, device.Status)
	assert.Equal(t, 0, device.RiskScore)
	assert.True(t, device.RegisteredAt.Equal(device.LastSeen))
}

func TestRegister_MissingRequiredFields(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	_, err := service.Register(context.Background(), types.DeviceInput{Name: "No Type"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = service.Register(context.Background(), types.DeviceInput{DeviceType: "sensor"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestRegister_AcceptsAnyAddressFormat(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	// Only name and device_type are required; address fields are free-form
	// so IPv6 devices and vendor-specific MAC notations register fine.
	input := sensorInput("IPv6 Sensor", "2001:db8::1")
	input.MACAddress = "aa-bb-cc-dd-ee-ff"

	device, err := service.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", device.IPAddress)
	assert.Equal(t, "aa-bb-cc-dd-ee-ff", device.MACAddress)
}

func TestGet_RefreshesScoreAndLastSeen(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}, {Severity: 8}, {Severity: 4}},
	}}
	service := newTestService(t, source)

	created, err := service.Register(context.Background(), sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	got, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.RiskScore)
	assert.True(t, got.LastSeen.After(created.LastSeen))
	assert.True(t, got.RegisteredAt.Equal(created.RegisteredAt))
}

func TestGet_Unknown(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	_, err := service.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrDeviceNotFound)
}

func TestGet_ScoreClampedAt100(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}, {Severity: 14}, {Severity: 13}},
	}}
	service := newTestService(t, source)

	created, err := service.Register(context.Background(), sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	got, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.RiskScore)
}

func TestGet_NoIPScoresZeroButAdvancesLastSeen(t *testing.T) {
	source := &fakeSource{}
	service := newTestService(t, source)

	created, err := service.Register(context.Background(), types.DeviceInput{
		Name:       "Air-gapped sensor",
		DeviceType: "sensor",
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	got, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RiskScore)
	assert.True(t, got.LastSeen.After(created.LastSeen))
	assert.Empty(t, source.queriedIPs)
}

func TestGet_StoreUnavailableFallback(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("%w: indexer down", types.ErrStoreUnavailable)}
	service := newTestService(t, source)

	created, err := service.Register(context.Background(), sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	got, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err, "store failure must not surface to the caller")
	assert.Equal(t, risk.FallbackScore, got.RiskScore)
}

func TestList_RefreshesAllIncludingFilteredOut(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}},
		"10.0.0.2": {{Severity: 4}},
	}}
	service := newTestService(t, source)
	ctx := context.Background()

	_, err := service.Register(ctx, sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)
	cam, err := service.Register(ctx, types.DeviceInput{
		Name: "Camera 1", DeviceType: "camera", IPAddress: "10.0.0.2",
	})
	require.NoError(t, err)

	listed, err := service.List(ctx, types.ListFilter{DeviceType: "sensor"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 50, listed[0].RiskScore)

	// The camera was filtered out of the response but still refreshed.
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, source.queriedIPs)
	refreshedCam, err := service.Get(ctx, cam.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, refreshedCam.RiskScore)
}

func TestList_StatusFilterMatchesFullListSubset(t *testing.T) {
	service := newTestService(t, &fakeSource{})
	ctx := context.Background()

	_, err := service.Register(ctx, sensorInput("Sensor 1", ""))
	require.NoError(t, err)
	_, err = service.Register(ctx, sensorInput("Sensor 2", ""))
	require.NoError(t, err)

	all, err := service.List(ctx, types.ListFilter{})
	require.NoError(t, err)

	online, err := service.List(ctx, types.ListFilter{Status: "online"})
	require.NoError(t, err)

	assert.Len(t, online, len(all))
	for _, device := range online {
		assert.Equal(t, types.StatusOnline, device.Status)
	}
}

func TestList_UnknownDeviceTypeReturnsEmpty(t *testing.T) {
	service := newTestService(t, &fakeSource{})
	ctx := context.Background()

	_, err := service.Register(ctx, sensorInput("Sensor 1", ""))
	require.NoError(t, err)

	listed, err := service.List(ctx, types.ListFilter{DeviceType: "submarine"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestList_AllScoresWithinBounds(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}, {Severity: 15}, {Severity: 15}},
		"10.0.0.2": {{Severity: 1}},
	}}
	service := newTestService(t, source)
	ctx := context.Background()

	_, err := service.Register(ctx, sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)
	_, err = service.Register(ctx, sensorInput("Sensor 2", "10.0.0.2"))
	require.NoError(t, err)

	listed, err := service.List(ctx, types.ListFilter{})
	require.NoError(t, err)
	for _, device := range listed {
		assert.GreaterOrEqual(t, device.RiskScore, 0)
		assert.LessOrEqual(t, device.RiskScore, types.MaxRiskScore)
	}
}

func TestUpdate_PreservesEngineAndIdentityFields(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 8}},
	}}
	service := newTestService(t, source)
	ctx := context.Background()

	created, err := service.Register(ctx, sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	// Refresh once so the stored score is non-zero.
	refreshed, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 20, refreshed.RiskScore)

	updated, err := service.Update(ctx, created.ID, types.DeviceInput{
		Name:       "Renamed Sensor",
		DeviceType: "camera",
		IPAddress:  "10.0.0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Renamed Sensor", updated.Name)
	assert.Equal(t, "camera", updated.DeviceType)
	assert.Equal(t, "10.0.0.9", updated.IPAddress)
	assert.Equal(t, types.StatusOnline, updated.Status)
	assert.Equal(t, 20, updated.RiskScore, "update must not touch the risk score")
	assert.True(t, updated.RegisteredAt.Equal(created.RegisteredAt))
	assert.True(t, updated.LastSeen.Equal(refreshed.LastSeen), "update is not a liveness signal")
}

func TestUpdate_Unknown(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	_, err := service.Update(context.Background(), "missing", sensorInput("X", ""))
	assert.ErrorIs(t, err, types.ErrDeviceNotFound)
}

func TestDelete_ThenGetAndList(t *testing.T) {
	service := newTestService(t, &fakeSource{})
	ctx := context.Background()

	created, err := service.Register(ctx, sensorInput("Sensor 1", ""))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))

	_, err = service.Get(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrDeviceNotFound)

	listed, err := service.List(ctx, types.ListFilter{})
	require.NoError(t, err)
	for _, device := range listed {
		assert.NotEqual(t, created.ID, device.ID)
	}

	assert.ErrorIs(t, service.Delete(ctx, created.ID), types.ErrDeviceNotFound)
}

func TestStats_EmptyRegistry(t *testing.T) {
	service := newTestService(t, &fakeSource{})

	summary, err := service.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalDevices)
	assert.Equal(t, 0, summary.OnlineDevices)
	assert.Equal(t, 0, summary.OfflineDevices)
	assert.Equal(t, 0.0, summary.AverageRiskScore)
	assert.Empty(t, summary.DeviceTypes)
}

func TestStats_CountsAndDistribution(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}, {Severity: 15}}, // 100 -> high
		"10.0.0.2": {{Severity: 8}, {Severity: 8}},   // 40  -> medium
		"10.0.0.3": {{Severity: 4}},                  // 5   -> low
	}}
	service := newTestService(t, source)
	ctx := context.Background()

	_, err := service.Register(ctx, sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)
	_, err = service.Register(ctx, sensorInput("Sensor 2", "10.0.0.2"))
	require.NoError(t, err)
	_, err = service.Register(ctx, types.DeviceInput{
		Name: "Camera 1", DeviceType: "camera", IPAddress: "10.0.0.3",
	})
	require.NoError(t, err)

	// Refresh scores via a list, then read stats.
	_, err = service.List(ctx, types.ListFilter{})
	require.NoError(t, err)

	summary, err := service.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalDevices)
	assert.Equal(t, 3, summary.OnlineDevices)
	assert.Equal(t, 0, summary.OfflineDevices)
	assert.Equal(t, map[string]int{"sensor": 2, "camera": 1}, summary.DeviceTypes)
	// (100 + 40 + 5) / 3 = 48.333... rounded to 2 decimals
	assert.Equal(t, 48.33, summary.AverageRiskScore)
	assert.Equal(t, 1, summary.RiskDistribution.High)
	assert.Equal(t, 1, summary.RiskDistribution.Medium)
	assert.Equal(t, 1, summary.RiskDistribution.Low)
}

func TestNotifiers_ReceiveLifecycleAndRiskEvents(t *testing.T) {
	source := &fakeSource{alertsByIP: map[string][]alertstore.Alert{
		"10.0.0.1": {{Severity: 15}},
	}}
	service := newTestService(t, source)
	notifier := &recordingNotifier{}
	service.AddNotifier(notifier)
	ctx := context.Background()

	created, err := service.Register(ctx, sensorInput("Sensor 1", "10.0.0.1"))
	require.NoError(t, err)

	_, err = service.Get(ctx, created.ID)
	require.NoError(t, err)

	// Second refresh does not change the score, so no second risk event.
	_, err = service.Get(ctx, created.ID)
	require.NoError(t, err)

	_, err = service.Update(ctx, created.ID, sensorInput("Sensor 1b", "10.0.0.1"))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))

	assert.Equal(t, []string{created.ID}, notifier.registered)
	assert.Equal(t, []string{created.ID}, notifier.updated)
	assert.Equal(t, []string{created.ID}, notifier.deleted)
	assert.Equal(t, []string{created.ID}, notifier.riskEvents)
}
