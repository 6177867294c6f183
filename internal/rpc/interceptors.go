package rpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CallObserver receives one event per completed RPC.
type CallObserver interface {
	ObserveRPC(fullMethod, code string, elapsed time.Duration)
}

type nopCallObserver struct{}

func (nopCallObserver) ObserveRPC(string, string, time.Duration) {}

func logCall(logger *zap.Logger, method string, err error, elapsed time.Duration) codes.Code {
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("duration", elapsed),
	}
	switch code {
	case codes.OK, codes.Canceled, codes.DeadlineExceeded:
		logger.Debug("rpc", fields...)
	default:
		logger.Warn("rpc", append(fields, zap.Error(err))...)
	}
	return code
}

// observeUnary logs each unary call and reports it to obs.
func observeUnary(logger *zap.Logger, obs CallObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		code := logCall(logger, info.FullMethod, err, elapsed)
		obs.ObserveRPC(info.FullMethod, code.String(), elapsed)
		return resp, err
	}
}

// observeStream logs each streaming call when it ends and reports it to obs.
func observeStream(logger *zap.Logger, obs CallObserver) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		elapsed := time.Since(start)
		code := logCall(logger, info.FullMethod, err, elapsed)
		obs.ObserveRPC(info.FullMethod, code.String(), elapsed)
		return err
	}
}

// recoverUnary converts a handler panic into codes.Internal.
func recoverUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in rpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// recoverStream converts a streaming handler panic into codes.Internal.
func recoverStream(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in rpc stream handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}
