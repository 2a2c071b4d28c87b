package lsp

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/harry-hov/tcpls/internal/env"
	"github.com/harry-hov/tcpls/internal/tools"
	"github.com/harry-hov/tcpls/internal/version"
	"github.com/harry-hov/tcpls/internal/workspace"
)

// MethodCapabilities is broadcast once a client reports it is initialized.
const MethodCapabilities = "tcpls/capabilities"

// Notifier delivers a notification to every connected client.
type Notifier interface {
	NotifyAll(method string, params interface{}) error
}

// Capabilities describes what this server offers beyond the LSP defaults.
type Capabilities struct {
	Workspace     string `json:"workspace"`
	Module        string `json:"module,omitempty"`
	SmartResolve  bool   `json:"smartResolve"`
	NativeSymbols bool   `json:"nativeSymbols"`
}

// Processor answers JSON-RPC messages one at a time. It is driven from the
// server's poll loop and is not safe for concurrent use.
type Processor struct {
	env       *env.Env
	workspace *workspace.Workspace
	notifier  Notifier

	snapshot *Snapshot

	formatOpt tools.FormattingOption

	initialized bool
	shutdown    bool
}

func NewProcessor(env *env.Env, ws *workspace.Workspace) *Processor {
	return &Processor{
		env:       env,
		workspace: ws,
		snapshot:  NewSnapshot(),
		formatOpt: tools.Gofumpt,
	}
}

func (s *Processor) SetNotifier(n Notifier) {
	s.notifier = n
}

// ProcessMessage decodes text, dispatches it, and returns the encoded
// response. Notifications and client responses produce no reply.
func (s *Processor) ProcessMessage(ctx context.Context, text string) string {
	msg, err := jsonrpc2.DecodeMessage([]byte(text))
	if err != nil {
		slog.Warn("undecodable message", "err", err)
		return ""
	}
	req, ok := msg.(jsonrpc2.Request)
	if !ok {
		return ""
	}

	var out []byte
	reply := func(ctx context.Context, result interface{}, err error) error {
		call, ok := req.(*jsonrpc2.Call)
		if !ok {
			return nil
		}
		resp, merr := jsonrpc2.NewResponse(call.ID(), result, err)
		if merr != nil {
			return merr
		}
		data, merr := json.Marshal(resp)
		if merr != nil {
			return merr
		}
		out = data
		return nil
	}

	if err := s.ServerHandler(ctx, reply, req); err != nil {
		slog.Error("handle "+req.Method(), "err", err)
	}
	return string(out)
}

func (s *Processor) ServerHandler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if s.shutdown && req.Method() != protocol.MethodExit {
		return reply(ctx, nil, jsonrpc2.Errorf(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case protocol.MethodExit:
		return s.Exit(ctx, reply, req)
	case protocol.MethodInitialize:
		return s.Initialize(ctx, reply, req)
	case protocol.MethodInitialized:
		return s.Initialized(ctx, reply, req)
	case protocol.MethodShutdown:
		return s.Shutdown(ctx, reply, req)
	case protocol.MethodTextDocumentDidChange:
		return s.DidChange(ctx, reply, req)
	case protocol.MethodTextDocumentDidClose:
		return s.DidClose(ctx, reply, req)
	case protocol.MethodTextDocumentDidOpen:
		return s.DidOpen(ctx, reply, req)
	case protocol.MethodTextDocumentDidSave:
		return s.DidSave(ctx, reply, req)
	case protocol.MethodTextDocumentFormatting:
		return s.Formatting(ctx, reply, req)
	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func (s *Processor) capabilities() Capabilities {
	return Capabilities{
		Workspace:     string(s.workspace.URI()),
		Module:        s.workspace.ModulePath(),
		SmartResolve:  s.env.Settings.EnableSmartResolve,
		NativeSymbols: s.env.Settings.ShowNativeSymbolsInEditor,
	}
}

func (s *Processor) Initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return sendParseError(ctx, reply, err)
	}

	if s.workspace.Reconcile(params.RootPath, params.RootURI) {
		slog.Info("adopted client workspace", "uri", string(params.RootURI))
	}
	s.initialized = true

	return reply(ctx, protocol.InitializeResult{
		ServerInfo: &protocol.ServerInfo{
			Name:    "tcpls",
			Version: version.Version,
		},
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				Change:    protocol.TextDocumentSyncKindFull,
				OpenClose: true,
				Save: &protocol.SaveOptions{
					IncludeText: true,
				},
			},
			DocumentFormattingProvider: true,
			Experimental:               s.capabilities(),
		},
	}, nil)
}

func (s *Processor) Initialized(ctx context.Context, reply jsonrpc2.Replier, _ jsonrpc2.Request) error {
	slog.Info("initialized")
	if s.notifier != nil {
		err := s.notifier.NotifyAll(MethodCapabilities, s.capabilities())
		if err != nil {
			slog.Warn("capabilities not delivered", "err", err)
		}
	}
	return reply(ctx, nil, nil)
}

func (s *Processor) Shutdown(ctx context.Context, reply jsonrpc2.Replier, _ jsonrpc2.Request) error {
	slog.Info("shutdown")
	s.shutdown = true
	return reply(ctx, nil, nil)
}

// Exit resets the session. The transport and process keep running; the
// embedding application owns their lifetime.
func (s *Processor) Exit(ctx context.Context, reply jsonrpc2.Replier, _ jsonrpc2.Request) error {
	slog.Info("exit")
	s.shutdown = false
	s.initialized = false
	s.snapshot.Clear()
	return reply(ctx, nil, nil)
}

func (s *Processor) IsInitialized() bool {
	return s.initialized
}
