package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/dialect"
	"room-bridge/backend/pkg/utils"
)

const (
	insertSensor     = `INSERT INTO sensor_readings (temperature, humidity, observed_at) VALUES (?, ?, ?)`
	insertDevice     = `INSERT INTO device_states (device_id, state, observed_at) VALUES (?, ?, ?)`
	insertConnection = `INSERT INTO connection_states (status, observed_at) VALUES (?, ?)`
	insertSystem     = `INSERT INTO system_health (uptime_ms, free_heap, rssi, observed_at) VALUES (?, ?, ?, ?)`

	selectSensor     = `SELECT temperature, humidity, observed_at FROM sensor_readings ORDER BY id DESC LIMIT 1`
	selectConnection = `SELECT status, observed_at FROM connection_states ORDER BY id DESC LIMIT 1`
	selectSystem     = `SELECT uptime_ms, free_heap, rssi, observed_at FROM system_health ORDER BY id DESC LIMIT 1`
	selectDevice     = `SELECT device_id, state, observed_at FROM device_states WHERE device_id = ? ORDER BY id DESC LIMIT 1`
	selectDevices    = `
		SELECT d.device_id, d.state, d.observed_at
		FROM device_states d
		JOIN (
			SELECT MAX(id) AS id FROM device_states GROUP BY device_id
		) latest ON latest.id = d.id
		ORDER BY d.device_id`
)

// SQL is a Store backed by database/sql. Rows are appended; the latest row per class is the one with
// the highest id, so reads follow write order.
type SQL struct {
	db      *sql.DB
	dialect dialect.Dialect
	l       *slog.Logger
}

// Open connects to the database described by connStr. The schema must already be migrated.
func Open(ctx context.Context, l *slog.Logger, d dialect.Dialect, connStr string) (*SQL, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(d.Driver(), d.DSN(connStr))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer keeps sqlite from returning SQLITE_BUSY under concurrent ingress and reads
	if d == dialect.SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		utils.LogOnError(l, db.Close, "failed to close database")
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}

	return &SQL{
		db:      db,
		dialect: d,
		l:       l.With(slog.String("component", "store"), slog.String("dialect", d.String())),
	}, nil
}

func (s *SQL) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

func (s *SQL) SaveSensor(ctx context.Context, r telemetry.SensorReading) error {
	return s.exec(ctx, insertSensor, r.Temperature, r.Humidity, r.ObservedAt.UTC())
}

func (s *SQL) SaveDevice(ctx context.Context, d telemetry.DeviceState) error {
	if d.Device == "" {
		return errors.New("device id is required")
	}

	return s.exec(ctx, insertDevice, d.Device, d.State, d.ObservedAt.UTC())
}

func (s *SQL) SaveConnection(ctx context.Context, c telemetry.ConnectionState) error {
	return s.exec(ctx, insertConnection, c.Status, c.ObservedAt.UTC())
}

func (s *SQL) SaveSystem(ctx context.Context, h telemetry.SystemHealth) error {
	return s.exec(ctx, insertSystem, h.UptimeMs, h.FreeHeapBytes, h.SignalStrength, h.ObservedAt.UTC())
}

func (s *SQL) LatestSensor(ctx context.Context) (telemetry.SensorReading, error) {
	var r telemetry.SensorReading

	err := s.db.QueryRowContext(ctx, selectSensor).Scan(&r.Temperature, &r.Humidity, &r.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return telemetry.SensorReading{}, nil
	}

	if err != nil {
		return telemetry.SensorReading{}, fmt.Errorf("failed to read latest sensor reading: %w", err)
	}

	r.ObservedAt = r.ObservedAt.UTC()

	return r, nil
}

func (s *SQL) LatestConnection(ctx context.Context) (telemetry.ConnectionState, error) {
	var c telemetry.ConnectionState

	err := s.db.QueryRowContext(ctx, selectConnection).Scan(&c.Status, &c.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultConnection(), nil
	}

	if err != nil {
		return telemetry.ConnectionState{}, fmt.Errorf("failed to read latest connection state: %w", err)
	}

	c.ObservedAt = c.ObservedAt.UTC()

	return c, nil
}

func (s *SQL) LatestSystem(ctx context.Context) (telemetry.SystemHealth, error) {
	var h telemetry.SystemHealth

	err := s.db.QueryRowContext(ctx, selectSystem).Scan(&h.UptimeMs, &h.FreeHeapBytes, &h.SignalStrength, &h.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return telemetry.SystemHealth{}, nil
	}

	if err != nil {
		return telemetry.SystemHealth{}, fmt.Errorf("failed to read latest system health: %w", err)
	}

	h.ObservedAt = h.ObservedAt.UTC()

	return h, nil
}

func (s *SQL) LatestDevice(ctx context.Context, deviceID string) (telemetry.DeviceState, error) {
	var d telemetry.DeviceState

	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(selectDevice), deviceID).Scan(&d.Device, &d.State, &d.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultDevice(deviceID), nil
	}

	if err != nil {
		return telemetry.DeviceState{}, fmt.Errorf("failed to read state of device %s: %w", deviceID, err)
	}

	d.ObservedAt = d.ObservedAt.UTC()

	return d, nil
}

func (s *SQL) LatestDevices(ctx context.Context) ([]telemetry.DeviceState, error) {
	rows, err := s.db.QueryContext(ctx, selectDevices)
	if err != nil {
		return nil, fmt.Errorf("failed to query device states: %w", err)
	}

	defer utils.LogOnError(s.l, rows.Close, "failed to close device state rows")

	devices := []telemetry.DeviceState{}

	for rows.Next() {
		var (
			d          telemetry.DeviceState
			observedAt time.Time
		)

		if err := rows.Scan(&d.Device, &d.State, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device state: %w", err)
		}

		d.ObservedAt = observedAt.UTC()
		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device states: %w", err)
	}

	return devices, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}
