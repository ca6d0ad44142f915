package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auditdomain "coaching-platform/backend/internal/audit/domain"
	devicedomain "coaching-platform/backend/internal/device/domain"
	deviceservice "coaching-platform/backend/internal/device/service"
	"coaching-platform/backend/internal/mfa"
	"coaching-platform/backend/internal/mfa/service"
	"coaching-platform/backend/internal/server/interceptors"
	sessiondomain "coaching-platform/backend/internal/session/domain"
)

// Service is the MFA orchestrator as seen by the gRPC layer.
type Service interface {
	Enroll(ctx context.Context, userID string) (*service.EnrollmentMaterial, error)
	Enable(ctx context.Context, userID, secret, code string, backupCodes []string) error
	Disable(ctx context.Context, userID, code string) error
	Verify(ctx context.Context, userID, code string, method service.Method) (*service.VerifyResult, error)
	RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error)
	Status(ctx context.Context, userID string) (*service.Status, error)
	SecurityOverview(ctx context.Context, userID string) (*service.Overview, error)
	TrustDevice(ctx context.Context, userID string, info deviceservice.DeviceInfo) (*devicedomain.TrustedDevice, string, error)
	IssueTrustedDeviceToken(ctx context.Context, userID, ip, userAgent string) (*deviceservice.IssuedToken, error)
	VerifyTrustedDeviceToken(ctx context.Context, userID, deviceID, token, ip, userAgent string) (bool, error)
	ListTrustedDevices(ctx context.Context, userID string) ([]*devicedomain.TrustedDevice, error)
	RemoveTrustedDevice(ctx context.Context, userID, deviceID string) error
	CreateMfaSession(ctx context.Context, userID string, temporary bool) (string, *sessiondomain.Session, error)
	ValidateMfaSession(ctx context.Context, token string) (*sessiondomain.Session, error)
	CompleteMfaSession(ctx context.Context, token string) (*sessiondomain.Session, error)
	ListSecurityEvents(ctx context.Context, userID string, limit int) ([]*auditdomain.SecurityEvent, error)
}

var (
	_ Service          = (*service.Service)(nil)
	_ MFAServiceServer = (*Server)(nil)
)

// Server implements MFAService. Every method acts on the authenticated caller.
type Server struct {
	svc    Service
	logger *zap.Logger
}

// NewServer returns a new MFA gRPC server. Pass nil svc for stub (Unimplemented).
func NewServer(svc Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger}
}

func (s *Server) caller(ctx context.Context, method string) (string, error) {
	if s.svc == nil {
		return "", status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	return userID, nil
}

// Enroll starts enrollment and returns the secret, otpauth URI and backup codes.
func (s *Server) Enroll(ctx context.Context, _ *EnrollRequest) (*EnrollResponse, error) {
	userID, err := s.caller(ctx, "Enroll")
	if err != nil {
		return nil, err
	}
	m, err := s.svc.Enroll(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &EnrollResponse{Secret: m.Secret, URI: m.URI, BackupCodes: m.BackupCodes}, nil
}

// Enable confirms the enrollment with a TOTP code.
func (s *Server) Enable(ctx context.Context, req *EnableRequest) (*EnableResponse, error) {
	userID, err := s.caller(ctx, "Enable")
	if err != nil {
		return nil, err
	}
	if req.Secret == "" || req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "secret and code are required")
	}
	if err := s.svc.Enable(ctx, userID, req.Secret, req.Code, req.BackupCodes); err != nil {
		return nil, s.toStatus(err)
	}
	return &EnableResponse{Enabled: true}, nil
}

// Disable turns MFA off.
func (s *Server) Disable(ctx context.Context, req *DisableRequest) (*DisableResponse, error) {
	userID, err := s.caller(ctx, "Disable")
	if err != nil {
		return nil, err
	}
	if err := s.svc.Disable(ctx, userID, req.Code); err != nil {
		return nil, s.toStatus(err)
	}
	return &DisableResponse{}, nil
}

// Verify checks a TOTP or backup code.
func (s *Server) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	userID, err := s.caller(ctx, "Verify")
	if err != nil {
		return nil, err
	}
	method := service.Method(req.Method)
	if method == "" {
		method = service.MethodTOTP
	}
	res, err := s.svc.Verify(ctx, userID, req.Code, method)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &VerifyResponse{Method: string(res.Method), BackupCodesRemaining: res.BackupCodesRemaining}, nil
}

// RegenerateBackupCodes replaces the backup codes.
func (s *Server) RegenerateBackupCodes(ctx context.Context, req *RegenerateBackupCodesRequest) (*RegenerateBackupCodesResponse, error) {
	userID, err := s.caller(ctx, "RegenerateBackupCodes")
	if err != nil {
		return nil, err
	}
	backup, err := s.svc.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &RegenerateBackupCodesResponse{BackupCodes: backup}, nil
}

// GetStatus returns the caller's MFA status.
func (s *Server) GetStatus(ctx context.Context, _ *GetStatusRequest) (*StatusResponse, error) {
	userID, err := s.caller(ctx, "GetStatus")
	if err != nil {
		return nil, err
	}
	st, err := s.svc.Status(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return statusToMessage(st), nil
}

// GetSecurityOverview returns status, trusted devices and recent events.
func (s *Server) GetSecurityOverview(ctx context.Context, _ *GetSecurityOverviewRequest) (*SecurityOverviewResponse, error) {
	userID, err := s.caller(ctx, "GetSecurityOverview")
	if err != nil {
		return nil, err
	}
	o, err := s.svc.SecurityOverview(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SecurityOverviewResponse{
		Status:       statusToMessage(o.Status),
		Devices:      devicesToMessages(o.Devices),
		RecentEvents: eventsToMessages(o.RecentEvents),
	}, nil
}

// TrustDevice trusts the calling client.
func (s *Server) TrustDevice(ctx context.Context, req *TrustDeviceRequest) (*TrustDeviceResponse, error) {
	userID, err := s.caller(ctx, "TrustDevice")
	if err != nil {
		return nil, err
	}
	d, token, err := s.svc.TrustDevice(ctx, userID, deviceservice.DeviceInfo{
		Name:      req.Name,
		IPAddress: interceptors.ClientIP(ctx),
		UserAgent: interceptors.UserAgent(ctx),
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &TrustDeviceResponse{Device: deviceToMessage(d), Token: token}, nil
}

// IssueTrustedDeviceToken trusts the calling client and returns only its id and token.
func (s *Server) IssueTrustedDeviceToken(ctx context.Context, _ *IssueTrustedDeviceTokenRequest) (*IssueTrustedDeviceTokenResponse, error) {
	userID, err := s.caller(ctx, "IssueTrustedDeviceToken")
	if err != nil {
		return nil, err
	}
	issued, err := s.svc.IssueTrustedDeviceToken(ctx, userID, interceptors.ClientIP(ctx), interceptors.UserAgent(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &IssueTrustedDeviceTokenResponse{DeviceID: issued.DeviceID, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// ValidateTrustedDeviceToken reports whether the token proves a trusted device.
func (s *Server) ValidateTrustedDeviceToken(ctx context.Context, req *ValidateTrustedDeviceTokenRequest) (*ValidateTrustedDeviceTokenResponse, error) {
	userID, err := s.caller(ctx, "ValidateTrustedDeviceToken")
	if err != nil {
		return nil, err
	}
	ok, err := s.svc.VerifyTrustedDeviceToken(ctx, userID, req.DeviceID, req.Token,
		interceptors.ClientIP(ctx), interceptors.UserAgent(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ValidateTrustedDeviceTokenResponse{Valid: ok}, nil
}

// ListTrustedDevices returns the caller's unexpired trusted devices.
func (s *Server) ListTrustedDevices(ctx context.Context, _ *ListTrustedDevicesRequest) (*ListTrustedDevicesResponse, error) {
	userID, err := s.caller(ctx, "ListTrustedDevices")
	if err != nil {
		return nil, err
	}
	list, err := s.svc.ListTrustedDevices(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListTrustedDevicesResponse{Devices: devicesToMessages(list)}, nil
}

// RemoveTrustedDevice revokes one of the caller's devices.
func (s *Server) RemoveTrustedDevice(ctx context.Context, req *RemoveTrustedDeviceRequest) (*RemoveTrustedDeviceResponse, error) {
	userID, err := s.caller(ctx, "RemoveTrustedDevice")
	if err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	if err := s.svc.RemoveTrustedDevice(ctx, userID, req.DeviceID); err != nil {
		return nil, s.toStatus(err)
	}
	return &RemoveTrustedDeviceResponse{}, nil
}

// CreateSession starts an MFA session for the caller.
func (s *Server) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	userID, err := s.caller(ctx, "CreateSession")
	if err != nil {
		return nil, err
	}
	token, sess, err := s.svc.CreateMfaSession(ctx, userID, req.Temporary)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &CreateSessionResponse{Token: token, Session: sessionToMessage(sess)}, nil
}

// CompleteSession marks the caller's MFA session verified.
func (s *Server) CompleteSession(ctx context.Context, req *CompleteSessionRequest) (*SessionMessage, error) {
	userID, err := s.caller(ctx, "CompleteSession")
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedSession(ctx, userID, req.Token); err != nil {
		return nil, err
	}
	sess, err := s.svc.CompleteMfaSession(ctx, req.Token)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return sessionToMessage(sess), nil
}

// ValidateSession returns the caller's live MFA session.
func (s *Server) ValidateSession(ctx context.Context, req *ValidateSessionRequest) (*SessionMessage, error) {
	userID, err := s.caller(ctx, "ValidateSession")
	if err != nil {
		return nil, err
	}
	sess, err := s.ownedSession(ctx, userID, req.Token)
	if err != nil {
		return nil, err
	}
	return sessionToMessage(sess), nil
}

// ListSecurityEvents returns the caller's recent security events.
func (s *Server) ListSecurityEvents(ctx context.Context, req *ListSecurityEventsRequest) (*ListSecurityEventsResponse, error) {
	userID, err := s.caller(ctx, "ListSecurityEvents")
	if err != nil {
		return nil, err
	}
	events, err := s.svc.ListSecurityEvents(ctx, userID, req.Limit)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListSecurityEventsResponse{Events: eventsToMessages(events)}, nil
}

// ownedSession validates token and hides sessions of other users behind NotFound.
func (s *Server) ownedSession(ctx context.Context, userID, token string) (*sessiondomain.Session, error) {
	sess, err := s.svc.ValidateMfaSession(ctx, token)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if sess.UserID != userID {
		return nil, status.Error(codes.NotFound, "mfa session not found")
	}
	return sess, nil
}

// toStatus maps service errors to gRPC status codes. Unexpected errors are logged and hidden.
func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, mfa.ErrBackupCodeUsed):
		return status.Error(codes.Unauthenticated, "backup code already used")
	case errors.Is(err, service.ErrInvalidCode):
		return status.Error(codes.Unauthenticated, "invalid verification code")
	case errors.Is(err, service.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "too many attempts, try again later")
	case errors.Is(err, service.ErrNotEnabled):
		return status.Error(codes.FailedPrecondition, "mfa is not enabled")
	case errors.Is(err, service.ErrAlreadyEnabled):
		return status.Error(codes.FailedPrecondition, "mfa is already enabled")
	case errors.Is(err, service.ErrProfile):
		return status.Error(codes.FailedPrecondition, "user profile has no email")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, service.ErrInvalidSessionToken):
		return status.Error(codes.InvalidArgument, "malformed mfa session token")
	case errors.Is(err, service.ErrInvalidMethod):
		return status.Error(codes.InvalidArgument, "method must be totp or backup_code")
	case errors.Is(err, service.ErrInvalidBackupCodes):
		return status.Error(codes.InvalidArgument, "backup codes are missing or malformed")
	case errors.Is(err, deviceservice.ErrInvalidTTL):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, mfa.ErrCrypto):
		s.logger.Error("mfa setup data corrupted", zap.Error(err))
		return status.Error(codes.DataLoss, "mfa setup data corrupted, re-enroll required")
	default:
		s.logger.Error("mfa request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func statusToMessage(st *service.Status) *StatusResponse {
	if st == nil {
		return &StatusResponse{}
	}
	return &StatusResponse{
		Enabled:              st.Enabled,
		Setup:                st.Setup,
		VerifiedAt:           st.VerifiedAt,
		BackupCodesRemaining: st.BackupCodesRemaining,
	}
}

func deviceToMessage(d *devicedomain.TrustedDevice) *TrustedDevice {
	if d == nil {
		return nil
	}
	return &TrustedDevice{
		ID:         d.ID,
		Name:       d.Name,
		IPAddress:  d.IPAddress,
		UserAgent:  d.UserAgent,
		CreatedAt:  d.CreatedAt,
		LastUsedAt: d.LastUsedAt,
		ExpiresAt:  d.ExpiresAt,
	}
}

func devicesToMessages(list []*devicedomain.TrustedDevice) []*TrustedDevice {
	out := make([]*TrustedDevice, 0, len(list))
	for _, d := range list {
		out = append(out, deviceToMessage(d))
	}
	return out
}

func eventsToMessages(list []*auditdomain.SecurityEvent) []*SecurityEvent {
	out := make([]*SecurityEvent, 0, len(list))
	for _, e := range list {
		out = append(out, &SecurityEvent{
			ID:        e.ID,
			EventType: string(e.Type),
			IPAddress: e.IPAddress,
			Location:  e.Location,
			Device:    e.Device,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func sessionToMessage(sess *sessiondomain.Session) *SessionMessage {
	if sess == nil {
		return nil
	}
	return &SessionMessage{Verified: sess.Verified, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt}
}
