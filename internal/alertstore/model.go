package alertstore

import (
	"context"
	"time"
)

// Alert is one severity-tagged intrusion event attributed to a source
// address. Alerts are read-only; the detection engine owns them.
type Alert struct {
	SourceIP  string
	Severity  int
	Timestamp time.Time
}

// Source is the query contract the risk engine consumes. An empty slice is a
// valid "no alerts" result; implementations must return an error wrapping
// types.ErrStoreUnavailable instead of silently returning nothing when the
// backing store is unreachable or responds with garbage.
type Source interface {
	AlertsBySourceIP(ctx context.Context, ip string, window time.Duration) ([]Alert, error)
}
