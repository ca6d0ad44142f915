package handler

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "coaching.mfa.v1.MFAService"

// MFAServiceServer is the server API for MFAService.
type MFAServiceServer interface {
	Enroll(context.Context, *EnrollRequest) (*EnrollResponse, error)
	Enable(context.Context, *EnableRequest) (*EnableResponse, error)
	Disable(context.Context, *DisableRequest) (*DisableResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	RegenerateBackupCodes(context.Context, *RegenerateBackupCodesRequest) (*RegenerateBackupCodesResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*StatusResponse, error)
	GetSecurityOverview(context.Context, *GetSecurityOverviewRequest) (*SecurityOverviewResponse, error)
	TrustDevice(context.Context, *TrustDeviceRequest) (*TrustDeviceResponse, error)
	IssueTrustedDeviceToken(context.Context, *IssueTrustedDeviceTokenRequest) (*IssueTrustedDeviceTokenResponse, error)
	ValidateTrustedDeviceToken(context.Context, *ValidateTrustedDeviceTokenRequest) (*ValidateTrustedDeviceTokenResponse, error)
	ListTrustedDevices(context.Context, *ListTrustedDevicesRequest) (*ListTrustedDevicesResponse, error)
	RemoveTrustedDevice(context.Context, *RemoveTrustedDeviceRequest) (*RemoveTrustedDeviceResponse, error)
	CreateSession(context.Context, *CreateSessionRequest) (*CreateSessionResponse, error)
	CompleteSession(context.Context, *CompleteSessionRequest) (*SessionMessage, error)
	ValidateSession(context.Context, *ValidateSessionRequest) (*SessionMessage, error)
	ListSecurityEvents(context.Context, *ListSecurityEventsRequest) (*ListSecurityEventsResponse, error)
}

// RegisterMFAServiceServer registers srv on s.
func RegisterMFAServiceServer(s grpc.ServiceRegistrar, srv MFAServiceServer) {
	s.RegisterService(&MFAService_ServiceDesc, srv)
}

// MFAService_ServiceDesc is the grpc.ServiceDesc for MFAService, defined in
// api/coaching/mfa/v1/mfa.proto. Messages use the JSON codec.
var MFAService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MFAServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Enroll", MFAServiceServer.Enroll),
		unary("Enable", MFAServiceServer.Enable),
		unary("Disable", MFAServiceServer.Disable),
		unary("Verify", MFAServiceServer.Verify),
		unary("RegenerateBackupCodes", MFAServiceServer.RegenerateBackupCodes),
		unary("GetStatus", MFAServiceServer.GetStatus),
		unary("GetSecurityOverview", MFAServiceServer.GetSecurityOverview),
		unary("TrustDevice", MFAServiceServer.TrustDevice),
		unary("IssueTrustedDeviceToken", MFAServiceServer.IssueTrustedDeviceToken),
		unary("ValidateTrustedDeviceToken", MFAServiceServer.ValidateTrustedDeviceToken),
		unary("ListTrustedDevices", MFAServiceServer.ListTrustedDevices),
		unary("RemoveTrustedDevice", MFAServiceServer.RemoveTrustedDevice),
		unary("CreateSession", MFAServiceServer.CreateSession),
		unary("CompleteSession", MFAServiceServer.CompleteSession),
		unary("ValidateSession", MFAServiceServer.ValidateSession),
		unary("ListSecurityEvents", MFAServiceServer.ListSecurityEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coaching/mfa/v1/mfa.proto",
}

// FullMethod returns the full gRPC method name, e.g. "/coaching.mfa.v1.MFAService/Verify".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(MFAServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(MFAServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// Client is a JSON-codec client for MFAService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Enroll(ctx context.Context, in *EnrollRequest, opts ...grpc.CallOption) (*EnrollResponse, error) {
	return invoke[EnrollResponse](ctx, c.cc, "Enroll", in, opts)
}

func (c *Client) Enable(ctx context.Context, in *EnableRequest, opts ...grpc.CallOption) (*EnableResponse, error) {
	return invoke[EnableResponse](ctx, c.cc, "Enable", in, opts)
}

func (c *Client) Disable(ctx context.Context, in *DisableRequest, opts ...grpc.CallOption) (*DisableResponse, error) {
	return invoke[DisableResponse](ctx, c.cc, "Disable", in, opts)
}

func (c *Client) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c.cc, "Verify", in, opts)
}

func (c *Client) RegenerateBackupCodes(ctx context.Context, in *RegenerateBackupCodesRequest, opts ...grpc.CallOption) (*RegenerateBackupCodesResponse, error) {
	return invoke[RegenerateBackupCodesResponse](ctx, c.cc, "RegenerateBackupCodes", in, opts)
}

func (c *Client) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "GetStatus", in, opts)
}

func (c *Client) GetSecurityOverview(ctx context.Context, in *GetSecurityOverviewRequest, opts ...grpc.CallOption) (*SecurityOverviewResponse, error) {
	return invoke[SecurityOverviewResponse](ctx, c.cc, "GetSecurityOverview", in, opts)
}

func (c *Client) TrustDevice(ctx context.Context, in *TrustDeviceRequest, opts ...grpc.CallOption) (*TrustDeviceResponse, error) {
	return invoke[TrustDeviceResponse](ctx, c.cc, "TrustDevice", in, opts)
}

func (c *Client) IssueTrustedDeviceToken(ctx context.Context, in *IssueTrustedDeviceTokenRequest, opts ...grpc.CallOption) (*IssueTrustedDeviceTokenResponse, error) {
	return invoke[IssueTrustedDeviceTokenResponse](ctx, c.cc, "IssueTrustedDeviceToken", in, opts)
}

func (c *Client) ValidateTrustedDeviceToken(ctx context.Context, in *ValidateTrustedDeviceTokenRequest, opts ...grpc.CallOption) (*ValidateTrustedDeviceTokenResponse, error) {
	return invoke[ValidateTrustedDeviceTokenResponse](ctx, c.cc, "ValidateTrustedDeviceToken", in, opts)
}

func (c *Client) ListTrustedDevices(ctx context.Context, in *ListTrustedDevicesRequest, opts ...grpc.CallOption) (*ListTrustedDevicesResponse, error) {
	return invoke[ListTrustedDevicesResponse](ctx, c.cc, "ListTrustedDevices", in, opts)
}

func (c *Client) RemoveTrustedDevice(ctx context.Context, in *RemoveTrustedDeviceRequest, opts ...grpc.CallOption) (*RemoveTrustedDeviceResponse, error) {
	return invoke[RemoveTrustedDeviceResponse](ctx, c.cc, "RemoveTrustedDevice", in, opts)
}

func (c *Client) CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error) {
	return invoke[CreateSessionResponse](ctx, c.cc, "CreateSession", in, opts)
}

func (c *Client) CompleteSession(ctx context.Context, in *CompleteSessionRequest, opts ...grpc.CallOption) (*SessionMessage, error) {
	return invoke[SessionMessage](ctx, c.cc, "CompleteSession", in, opts)
}

func (c *Client) ValidateSession(ctx context.Context, in *ValidateSessionRequest, opts ...grpc.CallOption) (*SessionMessage, error) {
	return invoke[SessionMessage](ctx, c.cc, "ValidateSession", in, opts)
}

func (c *Client) ListSecurityEvents(ctx context.Context, in *ListSecurityEventsRequest, opts ...grpc.CallOption) (*ListSecurityEventsResponse, error) {
	return invoke[ListSecurityEventsResponse](ctx, c.cc, "ListSecurityEvents", in, opts)
}
