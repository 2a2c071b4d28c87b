package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harry-hov/tcpls/internal/env"
	"github.com/harry-hov/tcpls/internal/lsp"
	"github.com/harry-hov/tcpls/internal/server"
	"github.com/harry-hov/tcpls/internal/workspace"
	"github.com/spf13/cobra"
	"go.lsp.dev/pkg/fakenet"
)

type serveFlags struct {
	config       string
	root         string
	port         int
	bind         string
	pollInterval time.Duration
	readTimeout  time.Duration
	stdio        bool
}

func CmdServe() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a server for editor clients using the Language Server Protocol over TCP",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Initializing Server...")
			e, err := env.Load(flags.config)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, e); err != nil {
				return err
			}
			return runServer(cmd.Context(), e, flags.stdio)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "path to the YAML configuration file")
	cmd.Flags().StringVarP(&flags.root, "root", "", "", "workspace root directory (default: current directory)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", env.DefaultPort, "TCP port to listen on")
	cmd.Flags().StringVarP(&flags.bind, "bind", "", env.DefaultBind, "address to bind the listener to")
	cmd.Flags().DurationVarP(&flags.pollInterval, "poll-interval", "", env.DefaultPollInterval, "interval between poll ticks")
	cmd.Flags().DurationVarP(&flags.readTimeout, "read-timeout", "", 0, "bound on each blocking read while decoding a frame (0 waits forever)")
	cmd.Flags().BoolVarP(&flags.stdio, "stdio", "", false, "serve a single client over stdin/stdout instead of TCP")

	return cmd
}

// apply overrides the loaded configuration with the flags set on the
// command line.
func (f *serveFlags) apply(cmd *cobra.Command, e *env.Env) error {
	changed := cmd.Flags().Changed
	if changed("root") {
		e.Root = f.root
	}
	if changed("port") {
		e.Port = f.port
	}
	if changed("bind") {
		e.Bind = f.bind
	}
	if changed("poll-interval") {
		e.PollInterval = f.pollInterval
	}
	if changed("read-timeout") {
		e.ReadTimeout = f.readTimeout
	}

	if e.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		e.Root = wd
	}
	root, err := filepath.Abs(e.Root)
	if err != nil {
		return fmt.Errorf("invalid root %q: %w", e.Root, err)
	}
	e.Root = root

	return e.Validate()
}

func runServer(ctx context.Context, e *env.Env, stdio bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws := workspace.New(e.Root)
	proc := lsp.NewProcessor(e, ws)

	hooks := server.Hooks{
		OnConnect: func(c *server.Connection) {
			slog.Info("client connected", "id", c.ID, "remote", c.RemoteAddr)
		},
		OnDisconnect: func(c *server.Connection) {
			slog.Info("client disconnected", "id", c.ID, "status", c.Status().String())
		},
	}
	if stdio {
		// The only client going away ends the session.
		hooks.OnDisconnect = func(*server.Connection) { stop() }
	}

	srv := server.New(proc, server.Options{
		Workspace:      ws,
		Settings:       e.Settings,
		Hooks:          hooks,
		ReadTimeout:    e.ReadTimeout,
		MaxHeaderBytes: e.MaxHeaderBytes,
	})
	proc.SetNotifier(srv)

	slog.Info("serving workspace", "root", e.Root, "stdio", stdio)
	if stdio {
		srv.Attach(fakenet.NewConn("stdio", os.Stdin, os.Stdout))
	} else {
		if err := srv.Start(e.Port, e.Bind); err != nil {
			return err
		}
	}

	return server.Run(ctx, srv, e.PollInterval)
}
