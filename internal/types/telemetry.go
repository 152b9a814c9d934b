package types

import "time"

// Telemetry is one beverage temperature reading relayed by the collector.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	DeviceName  string    `json:"device_name,omitempty"`
	DeviceAddr  string    `json:"device_addr,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	RSSI        *int      `json:"rssi,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
}

// Reading is a stored telemetry row.
type Reading struct {
	ID          int64     `json:"id"`
	StationID   string    `json:"station_id"`
	DeviceAddr  string    `json:"device_addr"`
	Time        time.Time `json:"ts"`
	Temperature float64   `json:"temperature_c"`
	Payload     string    `json:"payload"`
	RSSI        *int      `json:"rssi,omitempty"`
}
