package lsp

import (
	"log/slog"

	"go.lsp.dev/protocol"
)

// publishDiagnostics checks doc and broadcasts the result. An empty list
// clears earlier diagnostics for the document.
func (s *Processor) publishDiagnostics(doc *Document) error {
	if s.notifier == nil || !doc.IsGo() {
		return nil
	}
	slog.Info("Lint", "path", doc.URI.Filename())

	errors, err := s.Check(doc)
	if err != nil {
		return err
	}

	diagnostics := []protocol.Diagnostic{}
	for _, er := range errors {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    *posToRange(er.Line, er.Span),
			Severity: protocol.DiagnosticSeverityError,
			Source:   "tcpls",
			Message:  er.Msg,
			Code:     er.Tool,
		})
	}

	return s.notifier.NotifyAll(
		protocol.MethodTextDocumentPublishDiagnostics,
		&protocol.PublishDiagnosticsParams{
			URI:         doc.URI,
			Version:     uint32(doc.Version),
			Diagnostics: diagnostics,
		},
	)
}

func posToRange(line int, span []int) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{
			Line:      uint32(line - 1),
			Character: uint32(span[0] - 1),
		},
		End: protocol.Position{
			Line:      uint32(line - 1),
			Character: uint32(span[1] - 1),
		},
	}
}
