package lsp

import (
	"context"

	"go.lsp.dev/jsonrpc2"
)

var errDocumentNotOpen = jsonrpc2.NewError(jsonrpc2.InvalidParams, "document not open")

// sendParseError replies to a request whose params did not decode.
func sendParseError(ctx context.Context, reply jsonrpc2.Replier, err error) error {
	return reply(ctx, nil, jsonrpc2.Errorf(jsonrpc2.InvalidParams, "invalid params: %v", err))
}
