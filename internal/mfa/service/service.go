// Package service is the MFA orchestrator. It composes the TOTP engine, secret codec, backup code
// vault, rate limiter, trusted-device registry and MFA session manager into the public MFA
// operations, and records security events for each lifecycle change.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coaching-platform/backend/internal/audit"
	auditdomain "coaching-platform/backend/internal/audit/domain"
	devicedomain "coaching-platform/backend/internal/device/domain"
	deviceservice "coaching-platform/backend/internal/device/service"
	"coaching-platform/backend/internal/mfa"
	"coaching-platform/backend/internal/mfa/domain"
	"coaching-platform/backend/internal/platform/clock"
	"coaching-platform/backend/internal/ratelimit"
	sessiondomain "coaching-platform/backend/internal/session/domain"
	userdomain "coaching-platform/backend/internal/user/domain"
)

const instrumentationName = "coaching-platform/backend/internal/mfa/service"

// Sentinel errors for the MFA service; the gRPC handler maps them to status codes.
var (
	ErrProfile             = errors.New("user profile unavailable")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrRateLimited         = errors.New("too many attempts, try again later")
	ErrNotEnabled          = domain.ErrNotEnabled
	ErrAlreadyEnabled      = domain.ErrAlreadyEnabled
	ErrNotFound            = errors.New("not found")
	ErrStore               = errors.New("mfa store failure")
	ErrInvalidMethod       = errors.New("unknown verification method")
	ErrInvalidBackupCodes  = errors.New("backup codes are missing or malformed")
	ErrInvalidSessionToken = sessiondomain.ErrMalformedToken
)

// Method selects the verification path.
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodBackupCode Method = "backup_code"
)

// EnrollmentRepo is the enrollment persistence the service needs.
type EnrollmentRepo interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Enrollment, error)
	Enable(ctx context.Context, e *domain.Enrollment) error
	Disable(ctx context.Context, userID string, at time.Time) error
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error
	ConsumeBackupCode(ctx context.Context, userID, hash string) (int, error)
}

// ProfileRepo looks up the email shown in the authenticator app.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.Profile, error)
}

// RateLimiter counts verification attempts.
type RateLimiter interface {
	Check(ctx context.Context, userID string, action ratelimit.Action) ratelimit.Result
	Reset(ctx context.Context, userID string, action ratelimit.Action)
}

// DeviceRegistry manages trusted devices.
type DeviceRegistry interface {
	Trust(ctx context.Context, userID string, info deviceservice.DeviceInfo) (*devicedomain.TrustedDevice, string, error)
	IssueToken(ctx context.Context, userID, ip, userAgent string) (*deviceservice.IssuedToken, error)
	ValidateToken(ctx context.Context, userID, deviceID, token, ip, userAgent string) (bool, error)
	IsTrusted(ctx context.Context, userID, deviceID string) (bool, error)
	Revoke(ctx context.Context, userID, deviceID string) error
	List(ctx context.Context, userID string) ([]*devicedomain.TrustedDevice, error)
}

// SessionManager manages MFA sessions.
type SessionManager interface {
	Create(ctx context.Context, userID string, temporary bool) (string, *sessiondomain.Session, error)
	Validate(ctx context.Context, token string) (*sessiondomain.Session, error)
	Complete(ctx context.Context, token string) (*sessiondomain.Session, error)
}

// EventReader reads the security event log.
type EventReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.SecurityEvent, error)
}

// Deps wires the service. Events, Clock, Logger, Tracer and Meter are optional.
type Deps struct {
	Enrollments     EnrollmentRepo
	Profiles        ProfileRepo
	Limiter         RateLimiter
	Devices         DeviceRegistry
	Sessions        SessionManager
	Events          audit.Recorder
	EventReader     EventReader
	Otp             *mfa.OtpEngine
	Codec           *mfa.SecretCodec
	Vault           *mfa.BackupCodeVault
	BackupCodeCount int
	Clock           clock.Clock
	Logger          *zap.Logger
	Tracer          trace.Tracer
	Meter           metric.Meter
}

// Service implements the MFA operations.
type Service struct {
	enrollments   EnrollmentRepo
	profiles      ProfileRepo
	limiter       RateLimiter
	devices       DeviceRegistry
	sessions      SessionManager
	events        audit.Recorder
	eventReader   EventReader
	otp           *mfa.OtpEngine
	codec         *mfa.SecretCodec
	vault         *mfa.BackupCodeVault
	codeCount     int
	clock         clock.Clock
	logger        *zap.Logger
	tracer        trace.Tracer
	verifications metric.Int64Counter
}

// NewService returns a Service with the given dependencies.
func NewService(d Deps) *Service {
	s := &Service{
		enrollments: d.Enrollments,
		profiles:    d.Profiles,
		limiter:     d.Limiter,
		devices:     d.Devices,
		sessions:    d.Sessions,
		events:      d.Events,
		eventReader: d.EventReader,
		otp:         d.Otp,
		codec:       d.Codec,
		vault:       d.Vault,
		codeCount:   d.BackupCodeCount,
		clock:       d.Clock,
		logger:      d.Logger,
		tracer:      d.Tracer,
	}
	if s.events == nil {
		s.events = audit.Nop{}
	}
	if s.vault == nil {
		s.vault = mfa.NewBackupCodeVault(nil)
	}
	if s.codeCount <= 0 {
		s.codeCount = mfa.DefaultBackupCodeCount
	}
	if s.clock == nil {
		s.clock = clock.System
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	meter := d.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	counter, err := meter.Int64Counter("mfa.verifications",
		metric.WithDescription("MFA code checks by method and outcome"))
	if err != nil {
		s.logger.Warn("mfa.verifications counter unavailable", zap.Error(err))
		counter, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("mfa.verifications")
	}
	s.verifications = counter
	return s
}

// EnrollmentMaterial is what the user needs to add the account to an authenticator app. Nothing is
// persisted until Enable confirms a code generated from Secret.
type EnrollmentMaterial struct {
	Secret      string
	URI         string
	BackupCodes []string
}

// Status summarizes a user's MFA state.
type Status struct {
	Enabled              bool
	Setup                bool
	VerifiedAt           *time.Time
	BackupCodesRemaining int
}

// VerifyResult is the outcome of a successful Verify.
type VerifyResult struct {
	Method               Method
	BackupCodesRemaining int
}

// Overview is the account security page: status, trusted devices and recent events.
type Overview struct {
	Status       *Status
	Devices      []*devicedomain.TrustedDevice
	RecentEvents []*auditdomain.SecurityEvent
}

// Enroll generates a secret, its enrollment URI and a set of backup codes for userID.
func (s *Service) Enroll(ctx context.Context, userID string) (_ *EnrollmentMaterial, err error) {
	ctx, span := s.start(ctx, "Enroll", userID)
	defer endSpan(span, &err)

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if profile == nil || profile.Email == "" {
		return nil, ErrProfile
	}
	secret, err := s.otp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	uri, err := s.otp.URI(profile.Email, secret)
	if err != nil {
		return nil, err
	}
	codes, err := s.vault.Generate(s.codeCount)
	if err != nil {
		return nil, err
	}
	return &EnrollmentMaterial{Secret: secret, URI: uri, BackupCodes: codes}, nil
}

// Enable confirms possession of the authenticator with code and persists the encrypted secret and
// hashed backup codes.
func (s *Service) Enable(ctx context.Context, userID, secret, code string, backupCodes []string) (err error) {
	ctx, span := s.start(ctx, "Enable", userID)
	defer endSpan(span, &err)

	current, err := s.enrollment(ctx, userID)
	if err != nil {
		return err
	}
	if current != nil && current.Enabled {
		return ErrAlreadyEnabled
	}
	hashes, err := mfa.HashAll(backupCodes)
	if err != nil || len(hashes) == 0 {
		return ErrInvalidBackupCodes
	}
	if err := s.allow(ctx, userID, ratelimit.ActionTOTP); err != nil {
		return err
	}
	now := s.clock.Now()
	if !s.otp.Verify(secret, code, now) {
		s.countVerification(ctx, MethodTOTP, "invalid")
		return ErrInvalidCode
	}
	s.countVerification(ctx, MethodTOTP, "success")

	encrypted, err := s.codec.Encrypt(secret, userID)
	if err != nil {
		return err
	}
	e := &domain.Enrollment{
		UserID:          userID,
		EncryptedSecret: encrypted,
		BackupCodes:     hashes,
		Enabled:         true,
		VerifiedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.enrollments.Enable(ctx, e); err != nil {
		if errors.Is(err, domain.ErrAlreadyEnabled) {
			return ErrAlreadyEnabled
		}
		return storeErr("enable", err)
	}
	s.limiter.Reset(ctx, userID, ratelimit.ActionTOTP)
	s.events.Record(ctx, audit.Entry{
		UserID:   userID,
		Type:     auditdomain.EventMFAEnabled,
		Metadata: map[string]string{"backup_codes": strconv.Itoa(len(hashes))},
	})
	return nil
}

// Disable turns MFA off after a fresh TOTP code. Backup codes are not accepted.
func (s *Service) Disable(ctx context.Context, userID, code string) (err error) {
	ctx, span := s.start(ctx, "Disable", userID)
	defer endSpan(span, &err)

	e, err := s.enabledEnrollment(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.verifyTOTP(ctx, e, code); err != nil {
		return err
	}
	if err := s.enrollments.Disable(ctx, userID, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrNotEnabled) {
			return ErrNotEnabled
		}
		return storeErr("disable", err)
	}
	s.events.Record(ctx, audit.Entry{UserID: userID, Type: auditdomain.EventMFADisabled})
	return nil
}

// Verify checks a second factor for an enabled user, either a TOTP code or a backup code.
func (s *Service) Verify(ctx context.Context, userID, code string, method Method) (_ *VerifyResult, err error) {
	ctx, span := s.start(ctx, "Verify", userID)
	defer endSpan(span, &err)
	span.SetAttributes(attribute.String("mfa.method", string(method)))

	e, err := s.enabledEnrollment(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodTOTP:
		if err := s.verifyTOTP(ctx, e, code); err != nil {
			return nil, err
		}
		return &VerifyResult{Method: MethodTOTP, BackupCodesRemaining: len(e.BackupCodes)}, nil
	case MethodBackupCode:
		remaining, err := s.redeemBackupCode(ctx, e, code)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Method: MethodBackupCode, BackupCodesRemaining: remaining}, nil
	default:
		return nil, ErrInvalidMethod
	}
}

// RegenerateBackupCodes replaces both the unused and used code sets after a fresh TOTP code and
// returns the new plaintext codes.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID, code string) (_ []string, err error) {
	ctx, span := s.start(ctx, "RegenerateBackupCodes", userID)
	defer endSpan(span, &err)

	e, err := s.enabledEnrollment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyTOTP(ctx, e, code); err != nil {
		return nil, err
	}
	codes, err := s.vault.Generate(s.codeCount)
	if err != nil {
		return nil, err
	}
	hashes, err := mfa.HashAll(codes)
	if err != nil {
		return nil, err
	}
	if err := s.enrollments.ReplaceBackupCodes(ctx, userID, hashes, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrNotEnabled) {
			return nil, ErrNotEnabled
		}
		return nil, storeErr("replace backup codes", err)
	}
	s.events.Record(ctx, audit.Entry{
		UserID:   userID,
		Type:     auditdomain.EventBackupCodesRegenerated,
		Metadata: map[string]string{"backup_codes": strconv.Itoa(len(hashes))},
	})
	return codes, nil
}

// Status reports whether MFA is enabled and how many backup codes remain.
func (s *Service) Status(ctx context.Context, userID string) (_ *Status, err error) {
	ctx, span := s.start(ctx, "Status", userID)
	defer endSpan(span, &err)

	e, err := s.enrollment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return &Status{}, nil
	}
	return &Status{
		Enabled:              e.Enabled,
		Setup:                e.HasSecret(),
		VerifiedAt:           e.VerifiedAt,
		BackupCodesRemaining: len(e.BackupCodes),
	}, nil
}

// TrustDevice trusts a device for userID and returns it with its bearer token.
func (s *Service) TrustDevice(ctx context.Context, userID string, info deviceservice.DeviceInfo) (_ *devicedomain.TrustedDevice, _ string, err error) {
	ctx, span := s.start(ctx, "TrustDevice", userID)
	defer endSpan(span, &err)

	d, token, err := s.devices.Trust(ctx, userID, info)
	if err != nil {
		return nil, "", storeErr("trust device", err)
	}
	s.recordDeviceAdded(ctx, d)
	return d, token, nil
}

// IssueTrustedDeviceToken trusts the calling client and returns its token.
func (s *Service) IssueTrustedDeviceToken(ctx context.Context, userID, ip, userAgent string) (_ *deviceservice.IssuedToken, err error) {
	ctx, span := s.start(ctx, "IssueTrustedDeviceToken", userID)
	defer endSpan(span, &err)

	issued, err := s.devices.IssueToken(ctx, userID, ip, userAgent)
	if err != nil {
		return nil, storeErr("issue device token", err)
	}
	s.recordDeviceAdded(ctx, &devicedomain.TrustedDevice{
		ID:        issued.DeviceID,
		UserID:    userID,
		IPAddress: ip,
		Name:      devicedomain.NameFromUserAgent(userAgent),
	})
	return issued, nil
}

// RemoveTrustedDevice revokes a trusted device.
func (s *Service) RemoveTrustedDevice(ctx context.Context, userID, deviceID string) (err error) {
	ctx, span := s.start(ctx, "RemoveTrustedDevice", userID)
	defer endSpan(span, &err)

	if err := s.devices.Revoke(ctx, userID, deviceID); err != nil {
		if errors.Is(err, devicedomain.ErrNotFound) {
			return fmt.Errorf("%w: trusted device", ErrNotFound)
		}
		return storeErr("revoke device", err)
	}
	s.events.Record(ctx, audit.Entry{
		UserID:   userID,
		Type:     auditdomain.EventTrustedDeviceRemoved,
		Metadata: map[string]string{"device_id": deviceID},
	})
	return nil
}

// IsDeviceTrusted reports whether deviceID is an unexpired trusted device of userID.
func (s *Service) IsDeviceTrusted(ctx context.Context, userID, deviceID string) (bool, error) {
	ok, err := s.devices.IsTrusted(ctx, userID, deviceID)
	if err != nil {
		return false, storeErr("check device", err)
	}
	return ok, nil
}

// VerifyTrustedDeviceToken reports whether token proves possession of the trusted device.
func (s *Service) VerifyTrustedDeviceToken(ctx context.Context, userID, deviceID, token, ip, userAgent string) (_ bool, err error) {
	ctx, span := s.start(ctx, "VerifyTrustedDeviceToken", userID)
	defer endSpan(span, &err)

	ok, err := s.devices.ValidateToken(ctx, userID, deviceID, token, ip, userAgent)
	if err != nil {
		return false, storeErr("validate device token", err)
	}
	outcome := "rejected"
	if ok {
		outcome = "success"
	}
	s.countVerification(ctx, "trusted_device", outcome)
	return ok, nil
}

// ListTrustedDevices returns the user's unexpired trusted devices.
func (s *Service) ListTrustedDevices(ctx context.Context, userID string) ([]*devicedomain.TrustedDevice, error) {
	list, err := s.devices.List(ctx, userID)
	if err != nil {
		return nil, storeErr("list devices", err)
	}
	return list, nil
}

// CreateMfaSession starts an MFA session. Temporary sessions bridge a login that still needs MFA.
func (s *Service) CreateMfaSession(ctx context.Context, userID string, temporary bool) (string, *sessiondomain.Session, error) {
	token, sess, err := s.sessions.Create(ctx, userID, temporary)
	if err != nil {
		return "", nil, storeErr("create session", err)
	}
	return token, sess, nil
}

// ValidateMfaSession returns the live session for token.
func (s *Service) ValidateMfaSession(ctx context.Context, token string) (*sessiondomain.Session, error) {
	sess, err := s.sessions.Validate(ctx, token)
	return sess, sessionErr(err)
}

// CompleteMfaSession marks the session verified. Idempotent.
func (s *Service) CompleteMfaSession(ctx context.Context, token string) (*sessiondomain.Session, error) {
	sess, err := s.sessions.Complete(ctx, token)
	return sess, sessionErr(err)
}

// ListSecurityEvents returns the user's most recent security events.
func (s *Service) ListSecurityEvents(ctx context.Context, userID string, limit int) ([]*auditdomain.SecurityEvent, error) {
	if s.eventReader == nil {
		return nil, nil
	}
	events, err := s.eventReader.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	return events, nil
}

// recentEventsLimit is the number of events in the security overview.
const recentEventsLimit = 10

// SecurityOverview loads status, trusted devices and recent events concurrently.
func (s *Service) SecurityOverview(ctx context.Context, userID string) (_ *Overview, err error) {
	ctx, span := s.start(ctx, "SecurityOverview", userID)
	defer endSpan(span, &err)

	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.Status(gctx, userID)
		out.Status = st
		return err
	})
	g.Go(func() error {
		devices, err := s.ListTrustedDevices(gctx, userID)
		out.Devices = devices
		return err
	})
	g.Go(func() error {
		events, err := s.ListSecurityEvents(gctx, userID, recentEventsLimit)
		out.RecentEvents = events
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) enrollment(ctx context.Context, userID string) (*domain.Enrollment, error) {
	e, err := s.enrollments.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeErr("get enrollment", err)
	}
	return e, nil
}

func (s *Service) enabledEnrollment(ctx context.Context, userID string) (*domain.Enrollment, error) {
	e, err := s.enrollment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.Enabled || !e.HasSecret() {
		return nil, ErrNotEnabled
	}
	return e, nil
}

// allow consumes one attempt for action or returns ErrRateLimited.
func (s *Service) allow(ctx context.Context, userID string, action ratelimit.Action) error {
	res := s.limiter.Check(ctx, userID, action)
	if res.Allowed {
		return nil
	}
	s.countVerification(ctx, Method(action), "rate_limited")
	s.events.Record(ctx, audit.Entry{
		UserID:   userID,
		Type:     auditdomain.EventRateLimited,
		Metadata: map[string]string{"action": string(action)},
	})
	return ErrRateLimited
}

// verifyTOTP checks code against the stored secret under the totp rate limit.
func (s *Service) verifyTOTP(ctx context.Context, e *domain.Enrollment, code string) error {
	if err := s.allow(ctx, e.UserID, ratelimit.ActionTOTP); err != nil {
		return err
	}
	secret, err := s.codec.Decrypt(e.EncryptedSecret, e.UserID)
	if err != nil {
		s.logger.Error("stored mfa secret could not be decrypted", zap.String("user_id", e.UserID), zap.Error(err))
		return err
	}
	if !s.otp.Verify(secret, code, s.clock.Now()) {
		s.countVerification(ctx, MethodTOTP, "invalid")
		return ErrInvalidCode
	}
	s.countVerification(ctx, MethodTOTP, "success")
	s.limiter.Reset(ctx, e.UserID, ratelimit.ActionTOTP)
	return nil
}

func (s *Service) redeemBackupCode(ctx context.Context, e *domain.Enrollment, code string) (int, error) {
	if err := s.allow(ctx, e.UserID, ratelimit.ActionBackupCode); err != nil {
		return 0, err
	}
	res, err := s.vault.Redeem(ctx, s.enrollments, e, code)
	switch {
	case err == nil:
	case errors.Is(err, mfa.ErrBackupCodeUsed):
		s.countVerification(ctx, MethodBackupCode, "replayed")
		return 0, mfa.ErrBackupCodeUsed
	case errors.Is(err, mfa.ErrBackupCodeInvalid):
		s.countVerification(ctx, MethodBackupCode, "invalid")
		return 0, ErrInvalidCode
	default:
		return 0, storeErr("consume backup code", err)
	}
	s.countVerification(ctx, MethodBackupCode, "success")
	s.limiter.Reset(ctx, e.UserID, ratelimit.ActionBackupCode)
	s.events.Record(ctx, audit.Entry{
		UserID:   e.UserID,
		Type:     auditdomain.EventBackupCodeUsed,
		Metadata: map[string]string{"remaining": strconv.Itoa(res.Remaining)},
	})
	return res.Remaining, nil
}

func (s *Service) recordDeviceAdded(ctx context.Context, d *devicedomain.TrustedDevice) {
	s.events.Record(ctx, audit.Entry{
		UserID:    d.UserID,
		Type:      auditdomain.EventTrustedDeviceAdded,
		IPAddress: d.IPAddress,
		Device:    d.Name,
		Metadata:  map[string]string{"device_id": d.ID},
	})
}

func (s *Service) countVerification(ctx context.Context, method Method, outcome string) {
	s.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) start(ctx context.Context, op, userID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "mfa."+op, trace.WithAttributes(attribute.String("user.id", userID)))
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

func sessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sessiondomain.ErrMalformedToken):
		return ErrInvalidSessionToken
	case errors.Is(err, sessiondomain.ErrNotFound), errors.Is(err, sessiondomain.ErrExpired):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return storeErr("mfa session", err)
	}
}
