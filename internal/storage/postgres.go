package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iotsentry/iotsentry/internal/config"
	"github.com/iotsentry/iotsentry/internal/types"
)

const devicesSchema = `
CREATE TABLE IF NOT EXISTS devices (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	device_type      TEXT NOT NULL,
	ip_address       TEXT NOT NULL DEFAULT '',
	mac_address      TEXT NOT NULL DEFAULT '',
	manufacturer     TEXT NOT NULL DEFAULT '',
	firmware_version TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	risk_score       INT  NOT NULL DEFAULT 0,
	last_seen        TIMESTAMPTZ NOT NULL,
	registered_at    TIMESTAMPTZ NOT NULL
)`

// PostgresStore is the durable DeviceStore for deployments that need the
// registry to outlive the process.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), devicesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure devices table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Insert(ctx context.Context, d types.Device) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO devices (id, name, device_type, ip_address, mac_address,
			manufacturer, firmware_version, status, risk_score, last_seen, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.ID, d.Name, d.DeviceType, d.IPAddress, d.MACAddress,
		d.Manufacturer, d.FirmwareVersion, string(d.Status), d.RiskScore, d.LastSeen, d.RegisteredAt)

	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (types.Device, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, device_type, ip_address, mac_address,
			manufacturer, firmware_version, status, risk_score, last_seen, registered_at
		FROM devices WHERE id = $1
	`, id)

	device, err := scanDevice(row)
	if err == pgx.ErrNoRows {
		return types.Device{}, types.ErrDeviceNotFound
	}
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to query device: %w", err)
	}
	return device, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]types.Device, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, device_type, ip_address, mac_address,
			manufacturer, firmware_version, status, risk_score, last_seen, registered_at
		FROM devices ORDER BY registered_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]types.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}

func (p *PostgresStore) Replace(ctx context.Context, d types.Device) error {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET
			name = $2, device_type = $3, ip_address = $4, mac_address = $5,
			manufacturer = $6, firmware_version = $7, status = $8,
			risk_score = $9, last_seen = $10, registered_at = $11
		WHERE id = $1
	`, d.ID, d.Name, d.DeviceType, d.IPAddress, d.MACAddress,
		d.Manufacturer, d.FirmwareVersion, string(d.Status), d.RiskScore, d.LastSeen, d.RegisteredAt)

	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return types.ErrDeviceNotFound
	}
	return nil
}

func (p *PostgresStore) SetRisk(ctx context.Context, id string, score int, seen time.Time) error {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET risk_score = $2, last_seen = $3 WHERE id = $1
	`, id, score, seen)

	if err != nil {
		return fmt.Errorf("failed to update risk score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return types.ErrDeviceNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return types.ErrDeviceNotFound
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func scanDevice(row pgx.Row) (types.Device, error) {
	var d types.Device
	var status string

	err := row.Scan(&d.ID, &d.Name, &d.DeviceType, &d.IPAddress, &d.MACAddress,
		&d.Manufacturer, &d.FirmwareVersion, &status, &d.RiskScore, &d.LastSeen, &d.RegisteredAt)
	if err != nil {
		return types.Device{}, err
	}

	d.Status = types.DeviceStatus(status)
	return d, nil
}
