package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/harry-hov/tcpls/internal/env"
	"github.com/harry-hov/tcpls/internal/workspace"
)

type recordingNotifier struct {
	methods []string
	params  []interface{}
	err     error
}

func (n *recordingNotifier) NotifyAll(method string, params interface{}) error {
	n.methods = append(n.methods, method)
	n.params = append(n.params, params)
	return n.err
}

func newTestProcessor(t *testing.T) (*Processor, string) {
	t.Helper()
	root := t.TempDir()
	e := env.Default()
	e.Root = root
	e.Settings.ShowNativeSymbolsInEditor = true
	return NewProcessor(e, workspace.New(root)), root
}

func call(t *testing.T, p *Processor, id int32, method string, params interface{}) *jsonrpc2.Response {
	t.Helper()
	c, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(id), method, params)
	require.NoError(t, err)
	data, err := json.Marshal(c)
	require.NoError(t, err)

	out := p.ProcessMessage(context.Background(), string(data))
	require.NotEmpty(t, out, "calls always get a reply")

	msg, err := jsonrpc2.DecodeMessage([]byte(out))
	require.NoError(t, err)
	resp, ok := msg.(*jsonrpc2.Response)
	require.True(t, ok, "expected a response, got %T", msg)
	assert.Equal(t, jsonrpc2.NewNumberID(id), resp.ID())
	return resp
}

func notify(t *testing.T, p *Processor, method string, params interface{}) string {
	t.Helper()
	n, err := jsonrpc2.NewNotification(method, params)
	require.NoError(t, err)
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return p.ProcessMessage(context.Background(), string(data))
}

func errorCode(t *testing.T, resp *jsonrpc2.Response) jsonrpc2.Code {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(resp.Err(), &rpcErr), "expected a JSON-RPC error, got %v", resp.Err())
	return rpcErr.Code
}

func TestProcessor_Initialize(t *testing.T) {
	p, root := newTestProcessor(t)

	resp := call(t, p, 1, protocol.MethodInitialize, protocol.InitializeParams{})
	require.NoError(t, resp.Err())

	var result struct {
		Capabilities struct {
			DocumentFormattingProvider bool         `json:"documentFormattingProvider"`
			Experimental               Capabilities `json:"experimental"`
		} `json:"capabilities"`
		ServerInfo protocol.ServerInfo `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resp.Result(), &result))

	assert.Equal(t, "tcpls", result.ServerInfo.Name)
	assert.True(t, result.Capabilities.DocumentFormattingProvider)
	assert.Equal(t, string(uri.File(root)), result.Capabilities.Experimental.Workspace)
	assert.True(t, result.Capabilities.Experimental.SmartResolve)
	assert.True(t, result.Capabilities.Experimental.NativeSymbols)
	assert.True(t, p.IsInitialized())
}

func TestProcessor_InitializeAdoptsSameWorkspace(t *testing.T) {
	p, root := newTestProcessor(t)
	clientURI := uri.URI("file://" + filepath.ToSlash(root) + "?client")

	resp := call(t, p, 1, protocol.MethodInitialize, protocol.InitializeParams{
		RootPath: root,
		RootURI:  clientURI,
	})
	require.NoError(t, resp.Err())
	assert.Equal(t, clientURI, p.workspace.URI())
}

func TestProcessor_InitializeBadParams(t *testing.T) {
	p, _ := newTestProcessor(t)

	resp := call(t, p, 3, protocol.MethodInitialize, []int{1, 2})
	assert.Equal(t, jsonrpc2.InvalidParams, errorCode(t, resp))
}

func TestProcessor_InitializedBroadcastsCapabilities(t *testing.T) {
	p, _ := newTestProcessor(t)
	n := &recordingNotifier{}
	p.SetNotifier(n)

	assert.Empty(t, notify(t, p, protocol.MethodInitialized, struct{}{}))
	require.Equal(t, []string{MethodCapabilities}, n.methods)
	assert.IsType(t, Capabilities{}, n.params[0])
}

func TestProcessor_InitializedWithoutClientsIsNotFatal(t *testing.T) {
	p, _ := newTestProcessor(t)
	p.SetNotifier(&recordingNotifier{err: errors.New("no connected clients")})

	resp := call(t, p, 2, protocol.MethodInitialized, struct{}{})
	assert.NoError(t, resp.Err())
}

func TestProcessor_UnknownMethod(t *testing.T) {
	p, _ := newTestProcessor(t)

	resp := call(t, p, 9, "textDocument/hover", struct{}{})
	assert.Equal(t, jsonrpc2.MethodNotFound, errorCode(t, resp))

	assert.Empty(t, notify(t, p, "$/cancelRequest", struct{}{}), "notifications never get a reply")
}

func TestProcessor_IgnoresResponsesAndGarbage(t *testing.T) {
	p, _ := newTestProcessor(t)

	assert.Empty(t, p.ProcessMessage(context.Background(), `{"jsonrpc":"2.0","id":4,"result":null}`))
	assert.Empty(t, p.ProcessMessage(context.Background(), `not json`))
}

func TestProcessor_DocumentLifecycle(t *testing.T) {
	p, root := newTestProcessor(t)
	docURI := uri.File(filepath.Join(root, "main.go"))

	assert.Empty(t, notify(t, p, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        docURI,
			LanguageID: protocol.GoLanguage,
			Version:    1,
			Text:       "package main\n",
		},
	}))
	doc, ok := p.snapshot.Get(docURI)
	require.True(t, ok)
	assert.Equal(t, int32(1), doc.Version)

	assert.Empty(t, notify(t, p, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: docURI},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "package main\n\nfunc main() {}\n"}},
	}))
	doc, _ = p.snapshot.Get(docURI)
	assert.Equal(t, int32(2), doc.Version)
	assert.Equal(t, protocol.GoLanguage, doc.LanguageID)
	assert.Equal(t, "package main\n\nfunc main() {}\n", string(doc.Src))

	assert.Empty(t, notify(t, p, protocol.MethodTextDocumentDidSave, protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
		Text:         "package main\n",
	}))
	doc, _ = p.snapshot.Get(docURI)
	assert.Equal(t, "package main\n", string(doc.Src))

	assert.Empty(t, notify(t, p, protocol.MethodTextDocumentDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}))
	assert.Zero(t, p.snapshot.Len())
}

func TestProcessor_ChangeUnknownDocument(t *testing.T) {
	p, _ := newTestProcessor(t)

	resp := call(t, p, 5, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri.File("/nowhere.go")},
		},
	})
	assert.Equal(t, jsonrpc2.InvalidParams, errorCode(t, resp))
}

func TestProcessor_Formatting(t *testing.T) {
	p, root := newTestProcessor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n"), 0o644))
	docURI := uri.File(filepath.Join(root, "add.go"))

	notify(t, p, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  docURI,
			Text: "package demo\nfunc  Add(a,b int) int {\n\n\treturn a+b\n}\n",
		},
	})

	resp := call(t, p, 6, protocol.MethodTextDocumentFormatting, protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	})
	require.NoError(t, resp.Err())

	var edits []protocol.TextEdit
	require.NoError(t, json.Unmarshal(resp.Result(), &edits))
	require.Len(t, edits, 1)
	assert.Equal(t, "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n", edits[0].NewText)
}

func TestProcessor_FormattingRejectsOtherLanguages(t *testing.T) {
	p, root := newTestProcessor(t)
	docURI := uri.File(filepath.Join(root, "player.gd"))

	notify(t, p, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: docURI, LanguageID: "gdscript", Text: "extends Node\n"},
	})

	resp := call(t, p, 7, protocol.MethodTextDocumentFormatting, protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	})
	assert.Error(t, resp.Err())
}

func TestProcessor_ShutdownAndExit(t *testing.T) {
	p, _ := newTestProcessor(t)
	call(t, p, 1, protocol.MethodInitialize, protocol.InitializeParams{})

	require.NoError(t, call(t, p, 2, protocol.MethodShutdown, nil).Err())
	resp := call(t, p, 3, protocol.MethodInitialize, protocol.InitializeParams{})
	assert.Equal(t, jsonrpc2.InvalidRequest, errorCode(t, resp))

	assert.Empty(t, notify(t, p, protocol.MethodExit, nil))
	assert.False(t, p.IsInitialized())
	require.NoError(t, call(t, p, 4, protocol.MethodInitialize, protocol.InitializeParams{}).Err())
}
