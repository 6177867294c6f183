package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/sysinfo/internal/democlient"
	"github.com/HerbHall/sysinfo/pkg/models"
)

func newGRPCCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grpc",
		Short: "gRPC demonstrations",
	}
	cmd.AddCommand(newGRPCUnaryCommand(root))
	cmd.AddCommand(newGRPCStreamCommand(root))
	cmd.AddCommand(newGRPCCompareCommand(root))
	return cmd
}

func newGRPCUnaryCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "unary",
		Short: "Fetch one snapshot with GetSystemInfo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.dialGRPC()
			if err != nil {
				return err
			}
			defer c.Close()

			snap, elapsed, n, err := c.Unary(cmd.Context())
			if err != nil {
				return err
			}
			root.printer.Notef("GetSystemInfo: %s, %d bytes", elapsed.Round(time.Microsecond), n)
			return root.printer.Print(snap)
		},
	}
}

func newGRPCStreamCommand(root *rootCommand) *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Subscribe with StreamSystemInfo",
		Example: `  # Five seconds of half-second updates
  sysinfo-client grpc stream --interval 500ms --duration 5s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.dialGRPC()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := withOptionalTimeout(cmd.Context(), duration)
			defer cancel()

			root.printer.Notef("streaming every %s (Ctrl-C to stop)", interval)
			n := 0
			err = c.Stream(ctx, interval, func(s models.SystemInfoResponse) error {
				n++
				root.printer.Notef("--- update %d", n)
				return root.printer.Print(s)
			})
			root.printer.Notef("stream ended after %d updates", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Update interval requested from the server")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func newGRPCCompareCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Time one gRPC unary call against one REST GET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.dialGRPC()
			if err != nil {
				return err
			}
			defer c.Close()

			cmp, err := democlient.Compare(cmd.Context(), c, root.restClient())
			if err != nil {
				return err
			}
			return root.printer.Print(cmp)
		},
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
