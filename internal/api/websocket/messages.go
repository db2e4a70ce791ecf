package websocket

import (
	"time"

	"github.com/iotsentry/iotsentry/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeRiskScoreUpdated MessageType = "risk_score_updated"
	MessageTypeDeviceRegistered MessageType = "device_registered"
	MessageTypeDeviceUpdated    MessageType = "device_updated"
	MessageTypeDeviceDeleted    MessageType = "device_deleted"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RiskScoreData carries a risk score change for one device.
type RiskScoreData struct {
	Device        types.Device `json:"device"`
	PreviousScore int          `json:"previous_score"`
}

// DeviceEventData carries a registry lifecycle event.
type DeviceEventData struct {
	Device types.Device `json:"device"`
}

// DeviceDeletedData carries a deletion notice; only the ID survives.
type DeviceDeletedData struct {
	DeviceID string `json:"device_id"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
