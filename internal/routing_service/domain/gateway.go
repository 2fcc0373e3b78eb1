package domain

import "time"

// ConnectionStatus is the last-known connectivity state of a gateway bind.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusSuspended    ConnectionStatus = "SUSPENDED"
	StatusMaintenance  ConnectionStatus = "MAINTENANCE"
	StatusError        ConnectionStatus = "ERROR"
)

// RouteMode controls whether a connection takes part in routing.
type RouteMode string

const (
	RouteModeActive   RouteMode = "ACTIVE"
	RouteModeStandby  RouteMode = "STANDBY"
	RouteModeDisabled RouteMode = "DISABLED"
)

// GatewayConnection is a health and configuration snapshot of one SMSC connection.
// Capacity counters are informational only.
type GatewayConnection struct {
	ID     int64            `json:"smsc_id"`
	Code   string           `json:"smsc_code"`
	Name   string           `json:"smsc_name"`
	Status ConnectionStatus `json:"status"`
	Mode   RouteMode        `json:"route_mode"`

	DeliveryRate       float64 `json:"delivery_rate"` // percent, 0 until measured
	ErrorRateThreshold float64 `json:"error_rate_threshold"`

	Priority       int     `json:"priority"`
	IsDefaultRoute bool    `json:"is_default_route"`
	CostPerMessage float64 `json:"cost_per_sms"`
	Currency       string  `json:"currency"`

	MaxTPS        int        `json:"max_tps"`
	CurrentTPS    float64    `json:"current_tps"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}
