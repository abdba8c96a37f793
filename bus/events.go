package bus

import "time"

// Kafka topics shared with the pump controller firmware bridge
const (
	TopicDispenseCommand   = "dispense-commands"
	TopicDispenseStatus    = "dispense-status"
	TopicHardwareHeartbeat = "hardware-heartbeat"
	TopicSmartHomeState    = "smarthome-state"
)

// Event types
const (
	EventTypeDispenseCommand = "dispense.command"
	EventTypeStatusUpdate    = "dispense.status"
	EventTypeHeartbeat       = "hardware.heartbeat"
	EventTypeSmartHomeState  = "smarthome.state"
)

// PumpCommand is one per-pump instruction inside a dispense command
type PumpCommand struct {
	PumpNumber int     `json:"pump_number"`
	QuantityMl float64 `json:"quantity_ml"`
	Ingredient string  `json:"ingredient"`
	Order      int     `json:"order"`
}

// DispenseCommandEvent tells the hardware to pour. Keyed by log id so
// commands for the same dispense stay ordered.
type DispenseCommandEvent struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	LogID     uint          `json:"log_id"`
	Commands  []PumpCommand `json:"commands"`
	Timestamp time.Time     `json:"timestamp"`
}

// StatusUpdateEvent is the hardware's progress or terminal report for a dispense
type StatusUpdateEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	LogID        uint      `json:"log_id"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// HeartbeatEvent carries controller liveness and telemetry
type HeartbeatEvent struct {
	UptimeMs        int64     `json:"uptime_ms"`
	WifiRSSI        int       `json:"wifi_rssi"`
	FreeHeap        int64     `json:"free_heap"`
	TotalHeap       int64     `json:"total_heap"`
	PumpsActive     int       `json:"pumps_active"`
	FirmwareVersion string    `json:"firmware_version"`
	Timestamp       time.Time `json:"timestamp"`
}

// SmartHomeStateEvent mirrors dispenser state to home-automation consumers.
// Fire and forget; nothing in the core depends on its delivery.
type SmartHomeStateEvent struct {
	EventID          string      `json:"event_id"`
	EventType        string      `json:"event_type"`
	Pumps            interface{} `json:"pumps,omitempty"`
	UnresolvedAlerts int64       `json:"unresolved_alerts"`
	LastDispense     interface{} `json:"last_dispense,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}
