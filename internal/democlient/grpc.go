package democlient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	sysinfopb "github.com/HerbHall/sysinfo/api/proto/v1"
	"github.com/HerbHall/sysinfo/pkg/models"
)

// GRPCClient calls sysinfo.v1.SystemInfoService.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client sysinfopb.SystemInfoServiceClient
}

// DialGRPC creates a client for addr. Extra options are appended after the
// defaults (insecure transport, sysinfo codec).
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(sysinfopb.Codec{})),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, client: sysinfopb.NewSystemInfoServiceClient(conn)}, nil
}

// Close releases the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Unary fetches one snapshot and reports the round-trip time and encoded size.
func (c *GRPCClient) Unary(ctx context.Context) (models.SystemInfoResponse, time.Duration, int, error) {
	start := time.Now()
	resp, err := c.client.GetSystemInfo(ctx, &sysinfopb.SystemInfoRequest{})
	elapsed := time.Since(start)
	if err != nil {
		return models.SystemInfoResponse{}, elapsed, 0, fmt.Errorf("GetSystemInfo: %w", err)
	}
	b, _ := resp.MarshalBinary()
	return fromProto(resp), elapsed, len(b), nil
}

// Stream subscribes at interval and calls fn for each snapshot until ctx ends,
// the server closes the stream, or fn returns an error. Cancellation and
// deadline expiry end the stream without error.
func (c *GRPCClient) Stream(ctx context.Context, interval time.Duration, fn func(models.SystemInfoResponse) error) error {
	st, err := c.client.StreamSystemInfo(ctx, &sysinfopb.SystemInfoRequest{
		UpdateIntervalMs: intervalMillis(interval),
	})
	if err != nil {
		return streamErr(ctx, err)
	}
	for {
		resp, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return streamErr(ctx, err)
		}
		if err := fn(fromProto(resp)); err != nil {
			return err
		}
	}
}

// intervalMillis converts d to whole milliseconds, saturating at the int32
// range of the request field.
func intervalMillis(d time.Duration) int32 {
	ms := d / time.Millisecond
	switch {
	case ms > math.MaxInt32:
		return math.MaxInt32
	case ms < math.MinInt32:
		return math.MinInt32
	}
	return int32(ms)
}

func streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return nil
	}
	return fmt.Errorf("StreamSystemInfo: %w", err)
}

func fromProto(r *sysinfopb.SystemInfoResponse) models.SystemInfoResponse {
	mem := r.GetMemoryInfo()
	return models.SystemInfoResponse{
		OSName:          r.GetOsName(),
		OSVersion:       r.GetOsVersion(),
		CPUUsagePercent: r.GetCpuUsagePercent(),
		MemoryInfo: models.MemoryInfo{
			TotalBytes:   mem.GetTotalBytes(),
			UsedBytes:    mem.GetUsedBytes(),
			FreeBytes:    mem.GetFreeBytes(),
			UsagePercent: mem.GetUsagePercent(),
		},
		UptimeSeconds: r.GetUptimeSeconds(),
		Timestamp:     r.GetTimestamp(),
	}
}
