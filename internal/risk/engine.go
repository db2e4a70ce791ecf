package risk

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/alertstore"
	"github.com/iotsentry/iotsentry/internal/types"
)

// Severity bands: raw alert levels bucket into point values which accumulate
// into the device score.
const (
	highSeverity = 12
	midSeverity  = 7
	lowSeverity  = 3

	highPoints = 50
	midPoints  = 20
	lowPoints  = 5
)

// FallbackScore is assigned when the alert store cannot be queried.
// Downstream dashboards treat it as "store degraded"; do not change it
// without a product decision.
const FallbackScore = 25

// Engine reduces a device's recent alert history to a bounded risk score.
// There is no carry-over between refreshes; every assessment recomputes from
// scratch over the trailing window.
type Engine struct {
	source  alertstore.Source
	window  time.Duration
	workers int
	logger  *zap.Logger
}

// Assessment is the outcome of scoring one device.
type Assessment struct {
	DeviceID string
	Score    int
	Degraded bool // store unavailable, fallback score applied
}

func NewEngine(source alertstore.Source, window time.Duration, workers int, logger *zap.Logger) *Engine {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		source:  source,
		window:  window,
		workers: workers,
		logger:  logger,
	}
}

// Score accumulates banded points across alerts and clamps the total.
func Score(alerts []alertstore.Alert) int {
	score := 0
	for _, alert := range alerts {
		switch {
		case alert.Severity >= highSeverity:
			score += highPoints
		case alert.Severity >= midSeverity:
			score += midPoints
		case alert.Severity >= lowSeverity:
			score += lowPoints
		}
	}
	if score > types.MaxRiskScore {
		return types.MaxRiskScore
	}
	return score
}

// Assess computes the current risk score for one device. Devices without a
// network identifier score 0. A store failure degrades to FallbackScore
// rather than failing the caller's read.
func (e *Engine) Assess(ctx context.Context, device types.Device) Assessment {
	if device.IPAddress == "" {
		return Assessment{DeviceID: device.ID, Score: 0}
	}

	alerts, err := e.source.AlertsBySourceIP(ctx, device.IPAddress, e.window)
	if err != nil {
		if errors.Is(err, types.ErrStoreUnavailable) {
			e.logger.Warn("Alert store unavailable, applying fallback score",
				zap.String("device_id", device.ID),
				zap.String("ip_address", device.IPAddress),
				zap.Error(err))
		} else {
			// Not a store outage. Keep the read alive but make the failure
			// stand out from expected degradation.
			e.logger.Error("Unexpected alert query failure, applying fallback score",
				zap.String("device_id", device.ID),
				zap.Error(err))
		}
		return Assessment{DeviceID: device.ID, Score: FallbackScore, Degraded: true}
	}

	return Assessment{DeviceID: device.ID, Score: Score(alerts)}
}

// AssessAll fans out assessments over a bounded worker pool so a fleet-wide
// refresh costs roughly one store round trip instead of one per device.
// Results are returned in input order.
func (e *Engine) AssessAll(ctx context.Context, devices []types.Device) []Assessment {
	results := make([]Assessment, len(devices))
	if len(devices) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(devices) {
		workers = len(devices)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.Assess(ctx, devices[idx])
			}
		}()
	}

	for idx := range devices {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}
