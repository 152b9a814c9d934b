package readings

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"cloudpico-notifier/internal/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/upsert-device.sql
var upsertDeviceSQL string

//go:embed sql/get-devices.sql
var getDevicesSQL string

// MaxLimit caps LatestReadings.
const MaxLimit = 500

// tsLayout is fixed width so ORDER BY ts sorts chronologically.
const tsLayout = "2006-01-02T15:04:05.000000Z"

var ErrInvalidReading = errors.New("invalid reading")

// Device is a notifier the collector has connected to.
type Device struct {
	Addr        string    `json:"addr"`
	LocalName   string    `json:"local_name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Connections int       `json:"connections"`
}

type Repository interface {
	InsertReading(ctx context.Context, r types.Reading) (int64, error)
	LatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error)
	TouchDevice(ctx context.Context, addr, localName string, seen time.Time) error
	Devices(ctx context.Context) ([]Device, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertReading(ctx context.Context, rec types.Reading) (int64, error) {
	if strings.TrimSpace(rec.StationID) == "" {
		return 0, fmt.Errorf("%w: station_id is required", ErrInvalidReading)
	}
	if rec.Time.IsZero() {
		return 0, fmt.Errorf("%w: timestamp is required", ErrInvalidReading)
	}
	if math.IsNaN(rec.Temperature) || math.IsInf(rec.Temperature, 0) {
		return 0, fmt.Errorf("%w: temperature is not finite", ErrInvalidReading)
	}

	var rssi any
	if rec.RSSI != nil {
		rssi = *rec.RSSI
	}
	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		rec.StationID,
		rec.DeviceAddr,
		rec.Time.UTC().Format(tsLayout),
		rec.Temperature,
		rec.Payload,
		rssi,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	return res.LastInsertId()
}

// LatestReadings returns up to limit readings, newest first. An empty
// stationID matches every station.
func (r *repositoryImpl) LatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, stationID, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()

	var out []types.Reading
	for rows.Next() {
		var (
			rec  types.Reading
			ts   string
			rssi sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.StationID, &rec.DeviceAddr, &ts, &rec.Temperature, &rec.Payload, &rssi); err != nil {
			return nil, err
		}
		if rec.Time, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		if rssi.Valid {
			v := int(rssi.Int64)
			rec.RSSI = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) TouchDevice(ctx context.Context, addr, localName string, seen time.Time) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("device address is required")
	}
	ts := seen.UTC().Format(tsLayout)
	if _, err := r.db.ExecContext(ctx, upsertDeviceSQL, addr, localName, ts, ts); err != nil {
		return fmt.Errorf("upsert device %s: %w", addr, err)
	}
	return nil
}

func (r *repositoryImpl) Devices(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, getDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close devices rows", "error", err)
		}
	}()

	var out []Device
	for rows.Next() {
		var (
			d           Device
			first, last string
		)
		if err := rows.Scan(&d.Addr, &d.LocalName, &first, &last, &d.Connections); err != nil {
			return nil, err
		}
		if d.FirstSeen, err = parseTimestamp(first); err != nil {
			return nil, err
		}
		if d.LastSeen, err = parseTimestamp(last); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}
