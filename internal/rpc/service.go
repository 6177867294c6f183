package rpc

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sysinfopb "github.com/HerbHall/sysinfo/api/proto/v1"
	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
)

var _ sysinfopb.SystemInfoServiceServer = (*Service)(nil)

// Status messages returned to clients.
const (
	msgRetrieveFailed = "error retrieving system information"
	msgStreamFailed   = "error occurred during streaming"
)

// Service implements sysinfo.v1.SystemInfoService over a telemetry handler.
type Service struct {
	sysinfopb.UnimplementedSystemInfoServiceServer

	handler         *telemetry.Handler
	logger          *zap.Logger
	observer        stream.Observer
	defaultInterval time.Duration
	ticker          stream.TickerFunc

	// done ends every open stream when closed.
	done   context.Context
	active atomic.Int64
}

// NewService creates a Service. done, when cancelled, ends every open stream
// without reporting an error to the client.
func NewService(done context.Context, handler *telemetry.Handler, logger *zap.Logger, observer stream.Observer, defaultInterval time.Duration) *Service {
	return &Service{
		handler:         handler,
		logger:          logger,
		observer:        observer,
		defaultInterval: defaultInterval,
		done:            done,
	}
}

// ActiveStreams returns the number of open StreamSystemInfo calls.
func (s *Service) ActiveStreams() int64 {
	return s.active.Load()
}

// GetSystemInfo returns one snapshot.
func (s *Service) GetSystemInfo(ctx context.Context, _ *sysinfopb.SystemInfoRequest) (*sysinfopb.SystemInfoResponse, error) {
	snap, err := s.handler.Handle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		s.logger.Error("GetSystemInfo failed", zap.Error(err))
		return nil, status.Error(codes.Internal, msgRetrieveFailed)
	}
	return toResponse(snap), nil
}

// StreamSystemInfo pushes snapshots at the requested interval until the
// client cancels or the service shuts down.
func (s *Service) StreamSystemInfo(req *sysinfopb.SystemInfoRequest, srv sysinfopb.SystemInfoService_StreamSystemInfoServer) error {
	ctx, cancel := context.WithCancel(srv.Context())
	defer cancel()
	stop := context.AfterFunc(s.done, cancel)
	defer stop()

	sink := stream.SinkFunc(func(_ context.Context, snap telemetry.Snapshot) error {
		return srv.Send(toResponse(snap))
	})

	sess := stream.New(s.handler.Source(), sink, int64(req.GetUpdateIntervalMs()),
		stream.WithTransport("grpc"),
		stream.WithLogger(s.logger),
		stream.WithObserver(s.observer),
		stream.WithDefaultInterval(s.defaultInterval),
		stream.WithTicker(s.ticker),
	)

	s.active.Add(1)
	defer s.active.Add(-1)

	s.logger.Debug("stream opened",
		zap.String("session_id", sess.ID()),
		zap.Duration("interval", sess.Interval()),
	)
	if err := sess.Run(ctx); err != nil {
		return status.Error(codes.Internal, msgStreamFailed)
	}
	return nil
}

func toResponse(s telemetry.Snapshot) *sysinfopb.SystemInfoResponse {
	return &sysinfopb.SystemInfoResponse{
		OsName:          s.OSName,
		OsVersion:       s.OSVersion,
		CpuUsagePercent: s.CPUUsagePercent,
		MemoryInfo: &sysinfopb.MemoryInfo{
			TotalBytes:   s.Memory.TotalBytes,
			UsedBytes:    s.Memory.UsedBytes,
			FreeBytes:    s.Memory.FreeBytes,
			UsagePercent: s.Memory.UsagePercent,
		},
		UptimeSeconds: s.UptimeSeconds,
		Timestamp:     s.Timestamp,
	}
}
