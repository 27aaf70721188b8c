package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/tooling"
)

// handleTextDocumentDidOpen handles document open notifications
func (s *Server) handleTextDocumentDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didOpen params")
	}

	s.refreshIfSchemaChanged(ctx)

	docURI := string(params.TextDocument.URI)
	s.api.UpdateDocument(docURI, params.TextDocument.Text, int(params.TextDocument.Version))
	s.publishDiagnostics(ctx, docURI)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidChange handles document change notifications
func (s *Server) handleTextDocumentDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChange params")
	}

	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	// Full document sync, so the last change holds the whole text
	docURI := string(params.TextDocument.URI)
	content := params.ContentChanges[len(params.ContentChanges)-1].Text

	s.refreshIfSchemaChanged(ctx)
	s.api.UpdateDocument(docURI, content, int(params.TextDocument.Version))
	s.publishDiagnostics(ctx, docURI)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidClose handles document close notifications
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didClose params")
	}

	docURI := string(params.TextDocument.URI)
	s.api.CloseDocument(docURI)
	s.publish(ctx, docURI, []protocol.Diagnostic{})

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidSave re-checks every open document when the
// canonical schema is saved, and the saved document otherwise
func (s *Server) handleTextDocumentDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didSave params")
	}

	docURI := string(params.TextDocument.URI)
	if s.isSchema(docURI) {
		s.refreshAll(ctx, "schema saved")
		return reply(ctx, nil, nil)
	}

	if doc, ok := s.api.GetDocument(docURI); ok {
		s.api.ParseFile(docURI, doc.Content)
	}
	s.publishDiagnostics(ctx, docURI)

	return reply(ctx, nil, nil)
}

// handleWorkspaceDidChangeWatchedFiles re-checks every open document when
// the client reports the canonical schema changed on disk
func (s *Server) handleWorkspaceDidChangeWatchedFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChangeWatchedFiles params")
	}

	for _, change := range params.Changes {
		if change != nil && s.isSchema(string(change.URI)) {
			s.refreshAll(ctx, "schema changed on disk")
			break
		}
	}

	return reply(ctx, nil, nil)
}

// refreshIfSchemaChanged catches schema rewrites the client never reported
func (s *Server) refreshIfSchemaChanged(ctx context.Context) {
	if s.api.SchemaChanged() {
		s.refreshAll(ctx, "schema stale")
	}
}

func (s *Server) refreshAll(ctx context.Context, reason string) {
	refreshed := s.api.Refresh()
	s.logger.Debug(reason, zap.Int("documents", len(refreshed)))
	for _, u := range refreshed {
		s.publishDiagnostics(ctx, u)
	}
}

// handleTextDocumentCodeAction offers the schema block insertion as a quick fix
func (s *Server) handleTextDocumentCodeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CodeActionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse codeAction params")
	}

	docURI := string(params.TextDocument.URI)
	actions := s.api.GetCodeActions(docURI, fromProtocolRange(params.Range))

	result := make([]protocol.CodeAction, 0, len(actions))
	for _, action := range actions {
		result = append(result, protocol.CodeAction{
			Title:       action.Title,
			Kind:        protocol.QuickFix,
			Diagnostics: []protocol.Diagnostic{convertDiagnostic(action.Diagnostic)},
			IsPreferred: true,
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentURI][]protocol.TextEdit{
					params.TextDocument.URI: {{
						Range:   toProtocolRange(action.Edit.Range),
						NewText: action.Edit.NewText,
					}},
				},
			},
		})
	}

	return reply(ctx, result, nil)
}

// handleTextDocumentHover shows what the canonical schema says about the
// model or column under the cursor
func (s *Server) handleTextDocumentHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse hover params")
	}

	pos := tooling.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	}
	hover := s.api.GetHover(string(params.TextDocument.URI), pos)
	if hover == nil {
		return reply(ctx, nil, nil)
	}

	rng := toProtocolRange(hover.Range)
	return reply(ctx, &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: hover.Contents,
		},
		Range: &rng,
	}, nil)
}

// handleTextDocumentDocumentSymbol lists models and their declared columns
func (s *Server) handleTextDocumentDocumentSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DocumentSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse documentSymbol params")
	}

	symbols := s.api.GetDocumentSymbols(string(params.TextDocument.URI))

	result := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		result = append(result, convertSymbol(sym))
	}
	return reply(ctx, result, nil)
}

// publishDiagnostics publishes diagnostics for a document
func (s *Server) publishDiagnostics(ctx context.Context, docURI string) {
	diagnostics := s.api.GetDiagnostics(docURI)

	lspDiagnostics := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		lspDiagnostics = append(lspDiagnostics, convertDiagnostic(d))
	}
	s.publish(ctx, docURI, lspDiagnostics)
}

func (s *Server) publish(ctx context.Context, docURI string, diagnostics []protocol.Diagnostic) {
	if s.client == nil {
		return
	}

	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(docURI),
		Diagnostics: diagnostics,
	}
	if err := s.client.PublishDiagnostics(ctx, &params); err != nil {
		s.logger.Warn("publishing diagnostics failed", zap.String("uri", docURI), zap.Error(err))
	}
}

func (s *Server) isSchema(docURI string) bool {
	if s.schemaPath == "" {
		return false
	}
	path := tooling.PathFromURI(docURI)
	if abs, err := filepath.Abs(s.schemaPath); err == nil {
		return filepath.Clean(path) == abs
	}
	return filepath.Clean(path) == filepath.Clean(s.schemaPath)
}

func convertDiagnostic(d tooling.Diagnostic) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    toProtocolRange(d.Range),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

func convertSymbol(sym *tooling.Symbol) protocol.DocumentSymbol {
	kind := protocol.SymbolKindClass
	if sym.Kind == tooling.SymbolKindColumn {
		kind = protocol.SymbolKindField
	}

	result := protocol.DocumentSymbol{
		Name:           sym.Name,
		Detail:         sym.Detail,
		Kind:           kind,
		Range:          toProtocolRange(sym.Range),
		SelectionRange: toProtocolRange(sym.SelectionRange),
	}
	for _, child := range sym.Children {
		result.Children = append(result.Children, convertSymbol(child))
	}
	return result
}

func toProtocolRange(r tooling.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(r.Start.Line),
			Character: uint32(r.Start.Character),
		},
		End: protocol.Position{
			Line:      uint32(r.End.Line),
			Character: uint32(r.End.Character),
		},
	}
}

func fromProtocolRange(r protocol.Range) tooling.Range {
	return tooling.Range{
		Start: tooling.Position{Line: int(r.Start.Line), Character: int(r.Start.Character)},
		End:   tooling.Position{Line: int(r.End.Line), Character: int(r.End.Character)},
	}
}

// convertSeverity converts tooling diagnostic severity to LSP severity
func convertSeverity(severity tooling.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch severity {
	case tooling.DiagnosticSeverityError:
		return protocol.DiagnosticSeverityError
	case tooling.DiagnosticSeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case tooling.DiagnosticSeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case tooling.DiagnosticSeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}
