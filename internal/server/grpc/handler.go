package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *syncproto.PingRequest) (*syncproto.PingResponse, error) {
	return &syncproto.PingResponse{ServerTime: time.Now().UTC()}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *syncproto.RegisterRequest) (*syncproto.RegisterResponse, error) {
	s.logger.Info(ctx, "Registration request", "username", req.Username)

	user, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, "username is taken")
		case errors.Is(err, common.ErrorInvalidArgument):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "user_id", user.ID)
	return &syncproto.RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *syncproto.LoginRequest) (*syncproto.TokenPair, error) {
	tokens, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		s.logger.Error(ctx, "login failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return tokens, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *syncproto.RefreshTokenRequest) (*syncproto.TokenPair, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrRefreshTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		s.logger.Error(ctx, "token refresh failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return tokens, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *syncproto.PushRequest) (*syncproto.PushResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.sync.Push(ctx, userID, req)
	if err != nil {
		return nil, s.syncError(ctx, "push", err)
	}
	return resp, nil
}

func (s *GRPCServer) Pull(ctx context.Context, req *syncproto.PullRequest) (*syncproto.PullResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.sync.Pull(ctx, userID, req)
	if err != nil {
		return nil, s.syncError(ctx, "pull", err)
	}
	return resp, nil
}

func (s *GRPCServer) syncError(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrorInvalidArgument) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
