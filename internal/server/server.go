// Package server accepts editor connections over TCP and drives them from a
// single polling loop: every tick it takes at most one new connection,
// decodes at most one frame per connection, and writes the processor's reply
// back on the same connection.
//
// A Server is not safe for concurrent use. One driver goroutine calls Start,
// PollOnce, NotifyAll and Stop.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/multierr"

	"github.com/harry-hov/tcpls/internal/env"
	"github.com/harry-hov/tcpls/internal/frame"
	"github.com/harry-hov/tcpls/internal/workspace"
)

// MethodChangeWorkspace asks a freshly connected client to open the
// server's workspace.
const MethodChangeWorkspace = "tcpls_client/changeWorkspace"

// Processor turns one decoded message into a reply. An empty reply means
// nothing is written back.
type Processor interface {
	ProcessMessage(ctx context.Context, text string) string
}

type ProcessorFunc func(ctx context.Context, text string) string

func (f ProcessorFunc) ProcessMessage(ctx context.Context, text string) string {
	return f(ctx, text)
}

// Hooks are lifecycle callbacks. They run on the poll goroutine and must
// not block; a panicking hook is recovered.
type Hooks struct {
	OnConnect    func(*Connection)
	OnDisconnect func(*Connection)
}

type Options struct {
	Workspace      *workspace.Workspace
	Settings       env.Settings
	Hooks          Hooks
	ReadTimeout    time.Duration
	MaxHeaderBytes int
}

// Connection is one tracked client.
type Connection struct {
	ID         uint64
	RemoteAddr string

	stream Stream
}

func (c *Connection) Status() Status { return c.stream.Status() }

type ChangeWorkspaceParams struct {
	Path string `json:"path"`
}

type Server struct {
	processor   Processor
	workspace   *workspace.Workspace
	settings    env.Settings
	hooks       Hooks
	decoder     frame.Decoder
	readTimeout time.Duration

	listener *net.TCPListener
	pending  chan net.Conn
	done     chan struct{}

	conns  []*Connection
	nextID uint64
}

func New(p Processor, opts Options) *Server {
	ws := opts.Workspace
	if ws == nil {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		ws = workspace.New(wd)
	}
	return &Server{
		processor:   p,
		workspace:   ws,
		settings:    opts.Settings,
		hooks:       opts.Hooks,
		decoder:     frame.Decoder{MaxHeaderBytes: opts.MaxHeaderBytes},
		readTimeout: opts.ReadTimeout,
	}
}

// Start listens on bindAddress:port. Calling it while already listening
// keeps the existing socket.
func (s *Server) Start(port int, bindAddress string) error {
	addr := net.JoinHostPort(bindAddress, strconv.Itoa(port))
	if s.listener != nil {
		slog.Warn("already listening", "addr", s.listener.Addr().String(), "requested", addr)
		return nil
	}

	ip := net.ParseIP(bindAddress)
	if ip == nil {
		return &BindError{Addr: addr, Err: fmt.Errorf("invalid IP address %q", bindAddress)}
	}
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: port})
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}

	s.listener = ln
	s.pending = make(chan net.Conn, 16)
	s.done = make(chan struct{})
	go acceptLoop(ln, s.pending, s.done)

	slog.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the listening address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func acceptLoop(ln net.Listener, pending chan<- net.Conn, done <-chan struct{}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "err", err)
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		select {
		case pending <- conn:
		case <-done:
			conn.Close()
			return
		}
	}
}

// Stop disconnects every client and closes the listener.
func (s *Server) Stop() error {
	var errs error
	for _, c := range s.conns {
		if err := c.stream.Disconnect(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, fmt.Errorf("disconnect %d: %w", c.ID, err))
		}
	}
	s.conns = nil

	if s.listener == nil {
		return errs
	}

	close(s.done)
	if err := s.listener.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close listener: %w", err))
	}
	for drained := false; !drained; {
		select {
		case conn := <-s.pending:
			conn.Close()
		default:
			drained = true
		}
	}
	s.listener, s.pending, s.done = nil, nil, nil

	slog.Info("stopped")
	return errs
}

// Attach tracks an already open connection, such as stdio, and runs the
// connect handshake on it.
func (s *Server) Attach(conn net.Conn) *Connection {
	return s.track(newPeer(conn, s.readTimeout), conn.RemoteAddr().String())
}

func (s *Server) track(stream Stream, remote string) *Connection {
	s.nextID++
	c := &Connection{ID: s.nextID, RemoteAddr: remote, stream: stream}
	s.conns = append(s.conns, c)

	slog.Info("Connection Taken", "conn", c.ID, "remote", remote)
	fire(s.hooks.OnConnect, c, "connect")
	s.handshake(c)
	return c
}

// handshake reconciles the client's workspace with ours. The transport
// delivers no parameters at connect time, so the requested root is empty
// and the client is always told to change to the server's workspace.
func (s *Server) handshake(c *Connection) {
	if s.workspace.Reconcile("", "") {
		return
	}

	msg, err := encodeNotification(MethodChangeWorkspace, ChangeWorkspaceParams{Path: s.workspace.Root()})
	if err != nil {
		slog.Error("encode handshake", "conn", c.ID, "err", err)
		return
	}
	if _, err := io.WriteString(c.stream, msg); err != nil {
		slog.Error("write handshake", "conn", c.ID, "err", err)
	}
}

// PollOnce runs one tick of the loop. Connections that went away are
// removed only after the scan completes.
func (s *Server) PollOnce(ctx context.Context) {
	select {
	case conn := <-s.pending:
		s.Attach(conn)
	default:
	}

	var dead []*Connection
	for _, c := range s.conns {
		if status := c.Status(); status != StatusActive {
			dead = append(dead, c)
			slog.Info("Disconnected", "conn", c.ID, "status", status.String())
			fire(s.hooks.OnDisconnect, c, "disconnect")
			continue
		}
		if n := c.stream.Available(); n > 0 {
			s.receive(ctx, c, n)
		}
	}
	s.remove(dead)
}

func (s *Server) receive(ctx context.Context, c *Connection, n int) {
	text, err := s.decoder.Decode(c.stream, n)
	switch {
	case errors.Is(err, frame.ErrHeaderTooShort):
		slog.Warn("Unable to parse header", "conn", c.ID, "bytes", n)
		return
	case err != nil:
		slog.Error("dropping frame", "conn", c.ID, "err", err)
		return
	case text == "":
		return
	}

	reply := s.ProcessMessage(ctx, text)
	if reply == "" {
		return
	}
	if _, err := io.WriteString(c.stream, reply); err != nil {
		slog.Error("write reply", "conn", c.ID, "err", err)
	}
}

func (s *Server) remove(dead []*Connection) {
	if len(dead) == 0 {
		return
	}
	kept := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		if slices.Contains(dead, c) {
			_ = c.stream.Disconnect()
			continue
		}
		kept = append(kept, c)
	}
	s.conns = kept
}

// Connections returns a snapshot of the live set.
func (s *Server) Connections() []*Connection {
	return slices.Clone(s.conns)
}

// ProcessMessage hands text to the processor and frames a non-empty reply.
func (s *Server) ProcessMessage(ctx context.Context, text string) string {
	reply := s.processor.ProcessMessage(ctx, text)
	if reply == "" {
		return ""
	}
	return frame.Encode(reply)
}

// NotifyAll writes one notification to every active connection.
func (s *Server) NotifyAll(method string, params interface{}) error {
	if len(s.conns) == 0 {
		return ErrNoConnections
	}

	msg, err := encodeNotification(method, params)
	if err != nil {
		return err
	}

	var errs error
	for _, c := range s.conns {
		if c.Status() != StatusActive {
			continue
		}
		if _, err := io.WriteString(c.stream, msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify %d: %w", c.ID, err))
		}
	}
	return errs
}

func (s *Server) IsSmartResolveEnabled() bool {
	return s.settings.EnableSmartResolve
}

func (s *Server) IsGotoNativeSymbolsEnabled() bool {
	return s.settings.ShowNativeSymbolsInEditor
}

func encodeNotification(method string, params interface{}) (string, error) {
	n, err := jsonrpc2.NewNotification(method, params)
	if err != nil {
		return "", fmt.Errorf("build %s notification: %w", method, err)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal %s notification: %w", method, err)
	}
	return frame.Encode(string(data)), nil
}

func fire(hook func(*Connection), c *Connection, event string) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("lifecycle hook panicked", "event", event, "conn", c.ID, "panic", r)
		}
	}()
	hook(c)
}
