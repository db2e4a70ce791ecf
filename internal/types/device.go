package types

import "time"

type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusWarning DeviceStatus = "warning"
)

// Risk score bounds and band thresholds.
const (
	MaxRiskScore = 100

	HighRiskThreshold   = 70
	MediumRiskThreshold = 30
)

// Device is one managed IoT endpoint. RiskScore and LastSeen are owned by
// the risk engine; every other field is identity/metadata.
type Device struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	DeviceType      string       `json:"device_type"`
	IPAddress       string       `json:"ip_address,omitempty"`
	MACAddress      string       `json:"mac_address,omitempty"`
	Manufacturer    string       `json:"manufacturer,omitempty"`
	FirmwareVersion string       `json:"firmware_version,omitempty"`
	Status          DeviceStatus `json:"status"`
	RiskScore       int          `json:"risk_score"`
	LastSeen        time.Time    `json:"last_seen"`
	RegisteredAt    time.Time    `json:"registered_at"`
}

// DeviceInput carries the caller-writable identity/metadata fields for
// register and update operations.
type DeviceInput struct {
	Name            string `json:"name"`
	DeviceType      string `json:"device_type"`
	IPAddress       string `json:"ip_address,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// ListFilter narrows a device listing by exact match. Empty fields match all.
type ListFilter struct {
	Status     string
	DeviceType string
}

// StatsSummary is the on-demand fleet overview.
type StatsSummary struct {
	TotalDevices     int              `json:"total_devices"`
	OnlineDevices    int              `json:"online_devices"`
	OfflineDevices   int              `json:"offline_devices"`
	DeviceTypes      map[string]int   `json:"device_types"`
	AverageRiskScore float64          `json:"average_risk_score"`
	RiskDistribution RiskDistribution `json:"risk_distribution"`
}

type RiskDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}
