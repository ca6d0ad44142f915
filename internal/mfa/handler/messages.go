package handler

import "time"

type EnrollRequest struct{}

type EnrollResponse struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

type EnableRequest struct {
	Secret      string   `json:"secret"`
	Code        string   `json:"code"`
	BackupCodes []string `json:"backup_codes"`
}

type EnableResponse struct {
	Enabled bool `json:"enabled"`
}

type DisableRequest struct {
	Code string `json:"code"`
}

type DisableResponse struct{}

type VerifyRequest struct {
	Code string `json:"code"`
	// Method is "totp" (default) or "backup_code".
	Method string `json:"method,omitempty"`
}

type VerifyResponse struct {
	Method               string `json:"method"`
	BackupCodesRemaining int    `json:"backup_codes_remaining"`
}

type RegenerateBackupCodesRequest struct {
	Code string `json:"code"`
}

type RegenerateBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type GetStatusRequest struct{}

type StatusResponse struct {
	Enabled              bool       `json:"enabled"`
	Setup                bool       `json:"setup"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
}

type GetSecurityOverviewRequest struct{}

type SecurityOverviewResponse struct {
	Status       *StatusResponse  `json:"status"`
	Devices      []*TrustedDevice `json:"devices"`
	RecentEvents []*SecurityEvent `json:"recent_events"`
}

// TrustedDevice is the client view of a trusted device. The token hash never leaves the server.
type TrustedDevice struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type SecurityEvent struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	IPAddress string            `json:"ip,omitempty"`
	Location  string            `json:"location,omitempty"`
	Device    string            `json:"device,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TrustDeviceRequest trusts the calling client. IP and user agent come from the request metadata.
type TrustDeviceRequest struct {
	Name string `json:"name,omitempty"`
}

type TrustDeviceResponse struct {
	Device *TrustedDevice `json:"device"`
	Token  string         `json:"token"`
}

type IssueTrustedDeviceTokenRequest struct{}

type IssueTrustedDeviceTokenResponse struct {
	DeviceID  string    `json:"device_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ValidateTrustedDeviceTokenRequest struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

type ValidateTrustedDeviceTokenResponse struct {
	Valid bool `json:"valid"`
}

type ListTrustedDevicesRequest struct{}

type ListTrustedDevicesResponse struct {
	Devices []*TrustedDevice `json:"devices"`
}

type RemoveTrustedDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type RemoveTrustedDeviceResponse struct{}

type CreateSessionRequest struct {
	Temporary bool `json:"temporary"`
}

type CreateSessionResponse struct {
	Token   string          `json:"token"`
	Session *SessionMessage `json:"session"`
}

type CompleteSessionRequest struct {
	Token string `json:"token"`
}

type ValidateSessionRequest struct {
	Token string `json:"token"`
}

type SessionMessage struct {
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListSecurityEventsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListSecurityEventsResponse struct {
	Events []*SecurityEvent `json:"events"`
}
