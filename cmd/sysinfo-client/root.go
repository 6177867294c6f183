package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/HerbHall/sysinfo/internal/democlient"
	"github.com/HerbHall/sysinfo/internal/version"
)

type rootCommand struct {
	cmd       *cobra.Command
	grpcAddr  string
	restURL   string
	formatStr string
	printer   *democlient.Printer

	warnOnce sync.Once
}

func newRootCommand() *rootCommand {
	root := &rootCommand{printer: democlient.NewPrinter()}

	cmd := &cobra.Command{
		Use:   "sysinfo-client",
		Short: "Demo client for the SysInfo gRPC and REST APIs",
		Long: `sysinfo-client calls a running SysInfo server over gRPC and REST.

It demonstrates unary and server-streaming gRPC calls, REST polling,
bearer authentication and the WebSocket stream, and compares the two
transports side by side.`,
		SilenceUsage:      true,
		PersistentPreRunE: root.persistentPreRunE,
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&root.grpcAddr, "grpc-addr", "localhost:5001", "gRPC server address")
	pflags.StringVar(&root.restURL, "rest-url", "http://localhost:5058", "REST base URL")
	pflags.StringVarP(&root.formatStr, "output", "o", "text", "Output format (text, json, yaml)")

	root.cmd = cmd
	cmd.AddCommand(newGRPCCommand(root))
	cmd.AddCommand(newRESTCommand(root))
	cmd.AddCommand(newVersionCommand(root))
	return root
}

func (r *rootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	f, err := democlient.ParseOutputFormat(r.formatStr)
	if err != nil {
		return err
	}
	r.printer.Format = f
	r.printer.Writer = cmd.OutOrStdout()
	return nil
}

// ExecuteContext runs the command tree with ctx as every command's context.
func (r *rootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

func (r *rootCommand) restClient() *democlient.RESTClient {
	c := democlient.NewRESTClient(r.restURL, nil)
	c.OnServerVersion = r.checkServerVersion
	return c
}

func (r *rootCommand) dialGRPC() (*democlient.GRPCClient, error) {
	return democlient.DialGRPC(r.grpcAddr)
}

// checkServerVersion warns once per invocation about a major mismatch.
func (r *rootCommand) checkServerVersion(server string) {
	r.warnOnce.Do(func() {
		if w := democlient.VersionWarning(version.Short(), server); w != "" {
			fmt.Fprintln(r.cmd.ErrOrStderr(), w)
		}
	})
}
