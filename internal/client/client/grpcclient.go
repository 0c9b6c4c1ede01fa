package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      syncproto.SyncServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    func(refreshToken string)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(p *syncproto.TokenPair) {
	s.mu.Lock()
	s.accessToken = p.AccessToken
	s.refreshToken = p.RefreshToken
	hook := s.onRefresh
	s.mu.Unlock()

	if hook != nil {
		hook(p.RefreshToken)
	}
}

func isAuthMethod(method string) bool {
	switch method {
	case syncproto.LoginMethod, syncproto.RegisterMethod, syncproto.RefreshTokenMethod, syncproto.PingMethod:
		return true
	}
	return false
}

func (s *GRPCClient) refresh(ctx context.Context, refreshToken string) error {
	resp, err := s.client.RefreshToken(ctx, &syncproto.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	s.setTokens(resp)
	return nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if isAuthMethod(method) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	accessToken, refreshToken := s.tokens()
	if accessToken == "" && refreshToken != "" {
		if err := s.refresh(ctx, refreshToken); err != nil {
			return err
		}
		accessToken, refreshToken = s.tokens()
	}

	err := invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() != codes.Unauthenticated {
		return err
	}
	if st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refreshToken == "" {
		return err
	}

	if err := s.refresh(ctx, refreshToken); err != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	accessToken, _ = s.tokens()
	return invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
}

// NewHomekeeperClient prepares a lazy connection to endpointURL. Extra dial
// options are applied after the defaults.
func NewHomekeeperClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = syncproto.NewSyncServiceClient(conn)
	return nil
}

// OnTokenRefresh registers fn to be called with every new refresh token.
func (s *GRPCClient) OnTokenRefresh(fn func(refreshToken string)) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

func (s *GRPCClient) RestoreSession(refreshToken string) {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = refreshToken
	s.mu.Unlock()
}

func (s *GRPCClient) Logout() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.mu.Unlock()
}

func (s *GRPCClient) Register(ctx context.Context, userName string, password []byte) error {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	_, err := s.client.Register(ctx, &syncproto.RegisterRequest{Username: userName, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, password []byte) (*syncproto.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	resp, err := s.client.Login(ctx, &syncproto.LoginRequest{Username: userName, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.setTokens(resp)
	return resp, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &syncproto.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.ServerTime.IsZero() {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) ensureSession() error {
	a, r := s.tokens()
	if a == "" && r == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func (s *GRPCClient) Push(ctx context.Context, req *syncproto.PushRequest) (*syncproto.PushResponse, error) {
	if err := s.ensureSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.Push(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Pull(ctx context.Context, req *syncproto.PullRequest) (*syncproto.PullResponse, error) {
	if err := s.ensureSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.Pull(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return ErrAlreadyExists
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
