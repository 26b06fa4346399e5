package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/jsonrpc"
	"github.com/paintlab/paintopt/internal/service"
)

func newRPCCommand() *cobra.Command {
	var (
		listenAddr  string
		allowRemote bool
	)

	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Start a JSON-RPC 2.0 server for editor and notebook integration",
		Long: `Serve JSON-RPC 2.0, one message per line.

Messages are read from stdin and answered on stdout unless --tcp is given.
A TCP listener on a wildcard or empty host is moved to 127.0.0.1; pass
--tcp-allow-remote to keep it on every interface.

Methods:
` + methodHelp(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(cmd)
			if err != nil {
				return err
			}
			logger := slog.Default()
			backend, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}
			server := newRPCServer(backend, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if listenAddr == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "JSON-RPC server running on stdio") //nolint:errcheck
				server.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				return nil
			}

			addr, remote := bindAddr(listenAddr, allowRemote)
			if remote {
				logger.Warn("JSON-RPC listener reachable from other hosts without authentication", "address", addr)
			}
			ln, err := jsonrpc.NewTCPListener(addr, server)
			if err != nil {
				return fmt.Errorf("starting JSON-RPC listener: %w", err)
			}
			defer ln.Close()                                                               //nolint:errcheck
			fmt.Fprintf(cmd.ErrOrStderr(), "JSON-RPC server listening on %s\n", ln.Addr()) //nolint:errcheck
			return ln.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "tcp", "", "Listen on this TCP address instead of stdio (e.g. :9000)")
	cmd.Flags().BoolVar(&allowRemote, "tcp-allow-remote", false,
		"Keep a wildcard --tcp host instead of rebinding to loopback (no authentication is performed)")

	return cmd
}

func newRPCServer(backend service.Backend, logger *slog.Logger) *jsonrpc.Server {
	registry := jsonrpc.NewMethodRegistry()
	jsonrpc.RegisterHandlers(registry, jsonrpc.NewHandlerContext(backend))
	return jsonrpc.NewServer(registry, logger)
}

// methodHelp lists the registered methods for the command's long help.
func methodHelp() string {
	registry := jsonrpc.NewMethodRegistry()
	jsonrpc.RegisterHandlers(registry, jsonrpc.NewHandlerContext(service.Backend{}))

	methods := registry.Describe()
	width := 0
	for _, m := range methods {
		width = max(width, len(m.Name))
	}
	var b strings.Builder
	for _, m := range methods {
		fmt.Fprintf(&b, "  %s  %s\n", padRight(m.Name, width), m.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// bindAddr returns the address to listen on and whether it accepts
// connections from other hosts. A bare port ("9000") counts as ":9000".
// Wildcard hosts become 127.0.0.1 unless allowRemote is set.
func bindAddr(addr string, allowRemote bool) (string, bool) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = "", addr
	}

	wildcard := host == "" || host == "0.0.0.0" || host == "::"
	switch {
	case wildcard && !allowRemote:
		return net.JoinHostPort("127.0.0.1", port), false
	case wildcard:
		return net.JoinHostPort(host, port), true
	default:
		ip := net.ParseIP(host)
		loopback := host == "localhost" || (ip != nil && ip.IsLoopback())
		return net.JoinHostPort(host, port), !loopback
	}
}
