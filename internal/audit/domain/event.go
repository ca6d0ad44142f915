package domain

import "time"

// EventType names an MFA lifecycle event.
type EventType string

const (
	EventMFAEnabled             EventType = "mfa_enabled"
	EventMFADisabled            EventType = "mfa_disabled"
	EventBackupCodeUsed         EventType = "backup_code_used"
	EventBackupCodesRegenerated EventType = "backup_codes_regenerated"
	EventTrustedDeviceAdded     EventType = "trusted_device_added"
	EventTrustedDeviceRemoved   EventType = "trusted_device_removed"
	EventRateLimited            EventType = "mfa_rate_limited"
)

// SecurityEvent is an append-only audit record. The JSON form is what is published to Kafka and
// shipped to Loki.
type SecurityEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      EventType         `json:"event_type"`
	IPAddress string            `json:"ip,omitempty"`
	Location  string            `json:"location,omitempty"`
	Device    string            `json:"device,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
