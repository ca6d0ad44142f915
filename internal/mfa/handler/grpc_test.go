package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"coaching-platform/backend/internal/audit"
	auditrepo "coaching-platform/backend/internal/audit/repository"
	devicerepo "coaching-platform/backend/internal/device/repository"
	deviceservice "coaching-platform/backend/internal/device/service"
	"coaching-platform/backend/internal/mfa"
	mfarepo "coaching-platform/backend/internal/mfa/repository"
	"coaching-platform/backend/internal/mfa/service"
	"coaching-platform/backend/internal/platform/clock"
	"coaching-platform/backend/internal/ratelimit"
	"coaching-platform/backend/internal/security"
	"coaching-platform/backend/internal/server/interceptors"
	sessionrepo "coaching-platform/backend/internal/session/repository"
	sessionservice "coaching-platform/backend/internal/session/service"
	userdomain "coaching-platform/backend/internal/user/domain"
	userrepo "coaching-platform/backend/internal/user/repository"
)

type harness struct {
	client *Client
	tokens *security.TokenProvider
	clock  *clock.Manual
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewManual(time.Now().UTC().Truncate(time.Second))
	codec, err := mfa.NewSecretCodec("test-master-key", "test-salt-key",
		mfa.WithScryptParams(mfa.ScryptParams{N: 1024, R: 8, P: 1}))
	if err != nil {
		t.Fatalf("NewSecretCodec: %v", err)
	}
	registry, err := deviceservice.NewRegistry(devicerepo.NewMemoryRepository(), 0, clk, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	events := auditrepo.NewMemoryRepository()
	svc := service.NewService(service.Deps{
		Enrollments: mfarepo.NewMemoryRepository(clk),
		Profiles: userrepo.NewMemoryRepository(
			&userdomain.Profile{ID: "user-1", Email: "one@example.com"},
			&userdomain.Profile{ID: "user-2", Email: "two@example.com"},
		),
		Limiter:     ratelimit.NewLimiter(ratelimit.NewMemoryCounter(), 5, 5*time.Minute, clk, nil),
		Devices:     registry,
		Sessions:    sessionservice.NewManager(sessionrepo.NewMemoryRepository(), 0, 0, clk, nil, nil),
		Events:      audit.NewLogger(nil, clk, interceptors.ClientInfo, audit.SinkFunc(events.Create)),
		EventReader: events,
		Otp:         mfa.NewOtpEngine("Coaching Platform", nil),
		Codec:       codec,
		Clock:       clk,
	})

	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptors.AuthUnary(tokens, nil)))
	RegisterMFAServiceServer(srv, NewServer(svc, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{client: NewClient(conn), tokens: tokens, clock: clk}
}

func (h *harness) as(t *testing.T, userID string, kv ...string) context.Context {
	t.Helper()
	token, _, err := h.tokens.IssueAccess(userID, "login-session")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}
	return ctx
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("code = %v (%v), want %v", got, err, want)
	}
}

func (h *harness) enable(t *testing.T, ctx context.Context) (string, []string) {
	t.Helper()
	enr, err := h.client.Enroll(ctx, &EnrollRequest{})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	code, _ := mfa.GenerateCode(enr.Secret, h.clock.Now())
	resp, err := h.client.Enable(ctx, &EnableRequest{Secret: enr.Secret, Code: code, BackupCodes: enr.BackupCodes})
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !resp.Enabled {
		t.Fatal("Enable returned enabled=false")
	}
	return enr.Secret, enr.BackupCodes
}

func TestMFAService_RequiresBearer(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.GetStatus(context.Background(), &GetStatusRequest{})
	wantCode(t, err, codes.Unauthenticated)
}

func TestMFAService_EnrollEnableVerify(t *testing.T) {
	h := newHarness(t)
	ctx := h.as(t, "user-1")

	_, err := h.client.Verify(ctx, &VerifyRequest{Code: "123456"})
	wantCode(t, err, codes.FailedPrecondition)

	_, backup := h.enable(t, ctx)
	st, err := h.client.GetStatus(ctx, &GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !st.Enabled || st.BackupCodesRemaining != 8 {
		t.Errorf("status = %+v", st)
	}

	res, err := h.client.Verify(ctx, &VerifyRequest{Code: backup[0], Method: "backup_code"})
	if err != nil {
		t.Fatalf("Verify backup: %v", err)
	}
	if res.BackupCodesRemaining != 7 {
		t.Errorf("remaining = %d, want 7", res.BackupCodesRemaining)
	}
	_, err = h.client.Verify(ctx, &VerifyRequest{Code: backup[0], Method: "backup_code"})
	wantCode(t, err, codes.Unauthenticated)
	if st, _ := status.FromError(err); st.Message() != "backup code already used" {
		t.Errorf("message = %q", st.Message())
	}

	_, err = h.client.Verify(ctx, &VerifyRequest{Code: "123456", Method: "sms"})
	wantCode(t, err, codes.InvalidArgument)

	events, err := h.client.ListSecurityEvents(ctx, &ListSecurityEventsRequest{})
	if err != nil {
		t.Fatalf("ListSecurityEvents: %v", err)
	}
	if len(events.Events) != 2 {
		t.Errorf("events = %d, want 2", len(events.Events))
	}
}

func TestMFAService_RateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := h.as(t, "user-1")
	secret, _ := h.enable(t, ctx)

	valid := map[string]bool{}
	for step := -mfa.Skew; step <= mfa.Skew; step++ {
		c, _ := mfa.GenerateCode(secret, h.clock.Now().Add(time.Duration(step*mfa.Period)*time.Second))
		valid[c] = true
	}
	wrong := "000000"
	for i := 1; valid[wrong]; i++ {
		wrong = fmt.Sprintf("%06d", i*111111)
	}

	for i := 1; i <= 5; i++ {
		_, err := h.client.Verify(ctx, &VerifyRequest{Code: wrong})
		wantCode(t, err, codes.Unauthenticated)
	}
	_, err := h.client.Verify(ctx, &VerifyRequest{Code: wrong})
	wantCode(t, err, codes.ResourceExhausted)

	// Limits are per user.
	other := h.as(t, "user-2")
	_, err = h.client.Verify(other, &VerifyRequest{Code: wrong})
	wantCode(t, err, codes.FailedPrecondition)
}

func TestMFAService_TrustedDevices(t *testing.T) {
	h := newHarness(t)
	ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	ctx := h.as(t, "user-1", "x-user-agent", ua, "x-forwarded-for", "203.0.113.7")

	trusted, err := h.client.TrustDevice(ctx, &TrustDeviceRequest{})
	if err != nil {
		t.Fatalf("TrustDevice: %v", err)
	}
	if len(trusted.Token) != 64 || trusted.Device.IPAddress != "203.0.113.7" || trusted.Device.Name == "" {
		t.Errorf("trusted = %+v token %q", trusted.Device, trusted.Token)
	}

	v, err := h.client.ValidateTrustedDeviceToken(ctx, &ValidateTrustedDeviceTokenRequest{DeviceID: trusted.Device.ID, Token: trusted.Token})
	if err != nil || !v.Valid {
		t.Fatalf("ValidateTrustedDeviceToken = %+v, %v", v, err)
	}
	other := h.as(t, "user-2")
	v, err = h.client.ValidateTrustedDeviceToken(other, &ValidateTrustedDeviceTokenRequest{DeviceID: trusted.Device.ID, Token: trusted.Token})
	if err != nil || v.Valid {
		t.Fatalf("other user validation = %+v, %v", v, err)
	}

	issued, err := h.client.IssueTrustedDeviceToken(ctx, &IssueTrustedDeviceTokenRequest{})
	if err != nil {
		t.Fatalf("IssueTrustedDeviceToken: %v", err)
	}
	list, err := h.client.ListTrustedDevices(ctx, &ListTrustedDevicesRequest{})
	if err != nil {
		t.Fatalf("ListTrustedDevices: %v", err)
	}
	if len(list.Devices) != 2 {
		t.Errorf("devices = %d, want 2", len(list.Devices))
	}

	_, err = h.client.RemoveTrustedDevice(other, &RemoveTrustedDeviceRequest{DeviceID: issued.DeviceID})
	wantCode(t, err, codes.NotFound)
	if _, err := h.client.RemoveTrustedDevice(ctx, &RemoveTrustedDeviceRequest{DeviceID: issued.DeviceID}); err != nil {
		t.Fatalf("RemoveTrustedDevice: %v", err)
	}
	_, err = h.client.RemoveTrustedDevice(ctx, &RemoveTrustedDeviceRequest{})
	wantCode(t, err, codes.InvalidArgument)
}

func TestMFAService_Sessions(t *testing.T) {
	h := newHarness(t)
	ctx := h.as(t, "user-1")

	created, err := h.client.CreateSession(ctx, &CreateSessionRequest{Temporary: true})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.Session.Verified {
		t.Error("new session verified")
	}

	_, err = h.client.ValidateSession(h.as(t, "user-2"), &ValidateSessionRequest{Token: created.Token})
	wantCode(t, err, codes.NotFound)
	_, err = h.client.CompleteSession(h.as(t, "user-2"), &CompleteSessionRequest{Token: created.Token})
	wantCode(t, err, codes.NotFound)

	done, err := h.client.CompleteSession(ctx, &CompleteSessionRequest{Token: created.Token})
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if !done.Verified || !done.ExpiresAt.After(created.Session.ExpiresAt) {
		t.Errorf("completed = %+v, created = %+v", done, created.Session)
	}
	again, err := h.client.CompleteSession(ctx, &CompleteSessionRequest{Token: created.Token})
	if err != nil || !again.Verified {
		t.Fatalf("second CompleteSession = %+v, %v", again, err)
	}

	_, err = h.client.ValidateSession(ctx, &ValidateSessionRequest{Token: "mfa_short"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestMFAService_SecurityOverview(t *testing.T) {
	h := newHarness(t)
	ctx := h.as(t, "user-1")
	h.enable(t, ctx)

	o, err := h.client.GetSecurityOverview(ctx, &GetSecurityOverviewRequest{})
	if err != nil {
		t.Fatalf("GetSecurityOverview: %v", err)
	}
	if !o.Status.Enabled || len(o.Devices) != 0 || len(o.RecentEvents) != 1 {
		t.Errorf("overview = %+v", o)
	}
	if o.RecentEvents[0].EventType != "mfa_enabled" {
		t.Errorf("event = %q", o.RecentEvents[0].EventType)
	}
}

// stubService fails every call with err.
type stubService struct {
	Service
	err error
}

func (s stubService) Status(context.Context, string) (*service.Status, error) { return nil, s.err }

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{service.ErrInvalidCode, codes.Unauthenticated},
		{mfa.ErrBackupCodeUsed, codes.Unauthenticated},
		{service.ErrRateLimited, codes.ResourceExhausted},
		{service.ErrNotEnabled, codes.FailedPrecondition},
		{service.ErrAlreadyEnabled, codes.FailedPrecondition},
		{fmt.Errorf("%w: no row", service.ErrProfile), codes.FailedPrecondition},
		{fmt.Errorf("%w: trusted device", service.ErrNotFound), codes.NotFound},
		{service.ErrInvalidSessionToken, codes.InvalidArgument},
		{fmt.Errorf("%w: bad tag", mfa.ErrCrypto), codes.DataLoss},
		{fmt.Errorf("%w: get enrollment: boom", service.ErrStore), codes.Internal},
		{errors.New("unexpected"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			srv := NewServer(stubService{err: tt.err}, zap.New(core))
			_, err := srv.GetStatus(interceptors.WithIdentity(context.Background(), "user-1", ""), &GetStatusRequest{})
			wantCode(t, err, tt.want)
			logged := logs.Len() > 0
			if wantLog := tt.want == codes.Internal || tt.want == codes.DataLoss; logged != wantLog {
				t.Errorf("logged = %v, want %v", logged, wantLog)
			}
		})
	}
}

func TestServer_NilServiceUnimplemented(t *testing.T) {
	srv := NewServer(nil, nil)
	_, err := srv.Enroll(interceptors.WithIdentity(context.Background(), "user-1", ""), &EnrollRequest{})
	wantCode(t, err, codes.Unimplemented)
}

func TestServer_MissingIdentity(t *testing.T) {
	srv := NewServer(stubService{}, nil)
	_, err := srv.GetStatus(context.Background(), &GetStatusRequest{})
	wantCode(t, err, codes.Unauthenticated)
}
