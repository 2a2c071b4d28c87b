package lsp

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

func (s *Processor) DidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return sendParseError(ctx, reply, err)
	}

	item := params.TextDocument
	doc := &Document{
		URI:        item.URI,
		LanguageID: item.LanguageID,
		Version:    item.Version,
		Src:        []byte(item.Text),
	}
	s.snapshot.Set(doc)

	slog.Info("open", "uri", string(item.URI))
	s.lint(doc)
	return reply(ctx, nil, nil)
}

func (s *Processor) DidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return sendParseError(ctx, reply, err)
	}

	s.snapshot.Remove(params.TextDocument.URI)

	slog.Info("close", "uri", string(params.TextDocument.URI))
	return reply(ctx, nil, nil)
}

func (s *Processor) DidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return sendParseError(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	doc, ok := s.snapshot.Get(uri)
	if !ok {
		return reply(ctx, nil, errDocumentNotOpen)
	}
	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	// Full sync: the last change carries the whole text.
	doc = &Document{
		URI:        uri,
		LanguageID: doc.LanguageID,
		Version:    params.TextDocument.Version,
		Src:        []byte(params.ContentChanges[len(params.ContentChanges)-1].Text),
	}
	s.snapshot.Set(doc)

	slog.Info("change", "uri", string(uri), "version", params.TextDocument.Version)
	s.lint(doc)
	return reply(ctx, nil, nil)
}

func (s *Processor) DidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return sendParseError(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	doc, ok := s.snapshot.Get(uri)
	if !ok {
		return reply(ctx, nil, errDocumentNotOpen)
	}
	if params.Text != "" {
		doc = &Document{
			URI:        uri,
			LanguageID: doc.LanguageID,
			Version:    doc.Version,
			Src:        []byte(params.Text),
		}
		s.snapshot.Set(doc)
	}

	slog.Info("save", "uri", string(uri))
	s.lint(doc)
	return reply(ctx, nil, nil)
}

// lint publishes diagnostics for doc. Failures are logged; they never fail
// the notification that triggered them.
func (s *Processor) lint(doc *Document) {
	if err := s.publishDiagnostics(doc); err != nil {
		slog.Warn("diagnostics not delivered", "uri", string(doc.URI), "err", err)
	}
}
