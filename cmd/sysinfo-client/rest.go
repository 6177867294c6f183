package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/sysinfo/internal/democlient"
	"github.com/HerbHall/sysinfo/pkg/models"
)

func newRESTCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rest",
		Short: "REST demonstrations",
	}
	cmd.AddCommand(newRESTBasicCommand(root))
	cmd.AddCommand(newRESTPollingCommand(root))
	cmd.AddCommand(newRESTAuthCommand(root))
	cmd.AddCommand(newRESTWatchCommand(root))
	return cmd
}

func newRESTBasicCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "basic",
		Short: "Fetch the full snapshot and the cpu, memory and os projections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := root.restClient()

			snap, _, _, err := c.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := root.printer.Print(snap); err != nil {
				return err
			}

			for _, m := range []models.Metric{models.MetricCPU, models.MetricMemory, models.MetricOS} {
				view, err := c.Metric(cmd.Context(), string(m))
				if err != nil {
					return err
				}
				root.printer.Notef("\n%s:", m)
				if err := root.printer.Print(view); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRESTPollingCommand(root *rootCommand) *cobra.Command {
	var (
		count int
		every time.Duration
	)
	cmd := &cobra.Command{
		Use:   "polling",
		Short: "Poll the snapshot endpoint at a fixed rate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.restClient().Poll(cmd.Context(), count, every, func(i int, s models.SystemInfoResponse, elapsed time.Duration) error {
				root.printer.Notef("--- poll %d (%s)", i, elapsed.Round(time.Microsecond))
				return root.printer.Print(s)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "Number of requests (0 polls until interrupted)")
	cmd.Flags().DurationVar(&every, "every", time.Second, "Delay between requests")
	return cmd
}

func newRESTAuthCommand(root *rootCommand) *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Fetch the snapshot with a bearer token",
		Long: `Mints an HS256 token with --secret and sends it as a bearer credential.
The server only annotates requests with the caller identity, so a wrong
secret still returns data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := democlient.MintToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			root.printer.Notef("token: %s", tok)

			snap, _, _, err := root.restClient().WithToken(tok).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return root.printer.Print(snap)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "sysinfo-demo-secret", "HS256 signing secret (matches auth.jwt_secret)")
	cmd.Flags().StringVar(&subject, "subject", "sysinfo-client", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "Token lifetime")
	return cmd
}

func newRESTWatchCommand(root *rootCommand) *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the WebSocket snapshot stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withOptionalTimeout(cmd.Context(), duration)
			defer cancel()

			root.printer.Notef("watching every %s (Ctrl-C to stop)", interval)
			return root.restClient().Watch(ctx, interval, func(s models.SystemInfoResponse) error {
				return root.printer.Print(s)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Update interval requested from the server")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}
