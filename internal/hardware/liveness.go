// Package hardware tracks pump controller liveness from bus heartbeats.
package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openpour/openpour/bus"
	"github.com/openpour/openpour/pkg/logger"
)

const (
	livenessKey = "hardware:controller:heartbeat"

	// Controllers beat every 30s; three missed beats means offline.
	livenessTTL = 90 * time.Second
)

// Snapshot is the last heartbeat with derived liveness
type Snapshot struct {
	Online          bool      `json:"online"`
	UptimeMs        int64     `json:"uptime_ms,omitempty"`
	WifiRSSI        int       `json:"wifi_rssi,omitempty"`
	FreeHeap        int64     `json:"free_heap,omitempty"`
	PumpsActive     int       `json:"pumps_active,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	LastSeen        time.Time `json:"last_seen,omitempty"`
}

// Store keeps the latest controller heartbeat in Redis with a TTL, so
// liveness expires on its own when the controller goes silent.
type Store struct {
	client *redis.Client
}

// NewStore creates a new liveness store
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Touch records a heartbeat, resetting the liveness TTL
func (s *Store) Touch(ctx context.Context, event bus.HeartbeatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	if err := s.client.Set(ctx, livenessKey, payload, livenessTTL).Err(); err != nil {
		return fmt.Errorf("failed to store heartbeat: %w", err)
	}

	logger.Debug(ctx).
		Int64("uptime_ms", event.UptimeMs).
		Int("pumps_active", event.PumpsActive).
		Str("firmware", event.FirmwareVersion).
		Msg("Controller heartbeat recorded")
	return nil
}

// Status returns the latest heartbeat snapshot. A missing or expired key
// means the controller is offline.
func (s *Store) Status(ctx context.Context) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, livenessKey).Bytes()
	if err == redis.Nil {
		return &Snapshot{Online: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read heartbeat: %w", err)
	}

	var event bus.HeartbeatEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal heartbeat: %w", err)
	}

	return &Snapshot{
		Online:          true,
		UptimeMs:        event.UptimeMs,
		WifiRSSI:        event.WifiRSSI,
		FreeHeap:        event.FreeHeap,
		PumpsActive:     event.PumpsActive,
		FirmwareVersion: event.FirmwareVersion,
		LastSeen:        event.Timestamp,
	}, nil
}

// Online reports controller liveness, false on any store error
func (s *Store) Online(ctx context.Context) bool {
	snapshot, err := s.Status(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to check controller liveness")
		return false
	}
	return snapshot.Online
}
