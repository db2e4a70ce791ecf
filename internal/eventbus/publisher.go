package eventbus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/types"
)

// Publisher mirrors registry and risk events onto NATS subjects for
// downstream automation (ticketing, quarantine playbooks). Optional: the
// server runs without it when no URL is configured.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewPublisher(natsURL, subjectPrefix string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to NATS", zap.String("url", natsURL))

	return &Publisher{
		conn:   conn,
		prefix: subjectPrefix,
		logger: logger,
	}, nil
}

type riskEvent struct {
	Device        types.Device `json:"device"`
	PreviousScore int          `json:"previous_score"`
	Timestamp     time.Time    `json:"timestamp"`
}

type deviceEvent struct {
	Device    types.Device `json:"device"`
	Timestamp time.Time    `json:"timestamp"`
}

type deleteEvent struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Publisher) DeviceRegistered(device types.Device) {
	p.publish("device_registered", deviceEvent{Device: device, Timestamp: time.Now().UTC()})
}

func (p *Publisher) DeviceUpdated(device types.Device) {
	p.publish("device_updated", deviceEvent{Device: device, Timestamp: time.Now().UTC()})
}

func (p *Publisher) DeviceDeleted(id string) {
	p.publish("device_deleted", deleteEvent{DeviceID: id, Timestamp: time.Now().UTC()})
}

func (p *Publisher) RiskScoreUpdated(device types.Device, previous int) {
	p.publish("risk_score_updated", riskEvent{
		Device:        device,
		PreviousScore: previous,
		Timestamp:     time.Now().UTC(),
	})
}

func (p *Publisher) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	subject := p.prefix + "." + event
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("Disconnected from NATS")
	}
}
