package democlient

import (
	"context"
	"fmt"
	"time"
)

// Comparison is one gRPC unary call timed against one REST GET.
type Comparison struct {
	GRPC      time.Duration `json:"grpcNanos" yaml:"grpcNanos"`
	GRPCBytes int           `json:"grpcBytes" yaml:"grpcBytes"`
	REST      time.Duration `json:"restNanos" yaml:"restNanos"`
	RESTBytes int           `json:"restBytes" yaml:"restBytes"`
}

// Faster names the quicker transport.
func (c Comparison) Faster() string {
	if c.GRPC <= c.REST {
		return "grpc"
	}
	return "rest"
}

// Compare fetches one snapshot over each transport.
func Compare(ctx context.Context, g *GRPCClient, r *RESTClient) (Comparison, error) {
	var cmp Comparison

	_, elapsed, n, err := g.Unary(ctx)
	if err != nil {
		return cmp, fmt.Errorf("grpc: %w", err)
	}
	cmp.GRPC, cmp.GRPCBytes = elapsed, n

	_, elapsed, n, err = r.Snapshot(ctx)
	if err != nil {
		return cmp, fmt.Errorf("rest: %w", err)
	}
	cmp.REST, cmp.RESTBytes = elapsed, n
	return cmp, nil
}
