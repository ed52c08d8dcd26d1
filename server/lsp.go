package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/parser"
)

const lspName = "tribit-lsp"

// LspServer provides diagnostics and hovers for tribit program files.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server doing its machine work on e.
func NewLSP(e *Engine) *LspServer {
	s := &LspServer{
		worker:  NewWorker(e),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.GetLogger("tribit.lsp").Infof("%s %s initializing", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return s.hover(text, params.Position), nil
}

// hover describes the token under pos: an instruction for a program value,
// the run output and minimal seed for the Program label, or a register's
// value in other bases.
func (s *LspServer) hover(text string, pos protocol.Position) *protocol.Hover {
	in, err := parser.Parse(text)
	if err != nil {
		return nil
	}
	line, col := int(pos.Line)+1, int(pos.Character)+1

	for i, sp := range in.RegisterSpans {
		if sp.Line == line && col >= sp.Col && col <= sp.End {
			v := []uint64{in.Registers.A, in.Registers.B, in.Registers.C}[i]
			return markdownHover(fmt.Sprintf("**Register %c** = %d\n\noctal `%o`, binary `%b`", 'A'+i, v, v, v), sp)
		}
	}

	p, err := in.Decode()
	if err != nil {
		return nil
	}

	if off := in.OffsetAt(line, col); off >= 0 {
		listing, _ := p.DisassembleAt(off)
		instr := p.Instructions()[off/2]
		role := "opcode"
		if off%2 == 1 {
			role = fmt.Sprintf("%s operand", bytecode.GetOpcodeInfo(instr.Op).Operand)
		}
		return markdownHover(fmt.Sprintf("**%s** (%s)\n\n```\n%s\n```", instr, role, listing), in.ProgramSpans[off])
	}

	label := in.ProgramLabel
	if label.Line == line && col >= label.Col && col <= label.End {
		result, err := s.worker.Do(func(e *Engine) interface{} {
			return describeProgram(e, p, in.Registers)
		})
		if err != nil {
			return nil
		}
		return markdownHover(result.(string), label)
	}

	return nil
}

// describeProgram runs p and searches for its seed. Called on the worker goroutine.
func describeProgram(e *Engine, p *bytecode.Program, regs bytecode.Registers) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Program** (%d instructions)\n\n", p.Len()/2)

	out, err := e.Run(p, regs)
	if err != nil {
		fmt.Fprintf(&b, "Run from %s: %v\n\n", regs, err)
	} else {
		fmt.Fprintf(&b, "Output from %s: `%s`\n\n", regs, bytecode.FormatOutput(out))
	}

	res := e.Solve(p)
	if res.Found {
		fmt.Fprintf(&b, "Minimal self-printing seed: `%d` (%d runs)", res.Seed, res.Stats.Runs)
	} else {
		fmt.Fprintf(&b, "No self-printing seed (%d runs)", res.Stats.Runs)
	}
	return b.String()
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose parses and decodes text, returning at most one diagnostic.
func diagnose(text string) []protocol.Diagnostic {
	in, err := parser.Parse(text)
	if err == nil {
		_, err = in.Decode()
	}
	if err == nil {
		return []protocol.Diagnostic{}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	d := protocol.Diagnostic{
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
	var pe *parser.Error
	if errors.As(err, &pe) {
		d.Range = toRange(parser.Span{Line: pe.Line, Col: pe.Col, End: pe.End})
		d.Message = pe.Msg
	}
	return []protocol.Diagnostic{d}
}

// --- Helpers ---

// toRange converts a 1-based parser span to a 0-based LSP range.
func toRange(sp parser.Span) protocol.Range {
	line := protocol.UInteger(max(sp.Line-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: protocol.UInteger(max(sp.Col-1, 0))},
		End:   protocol.Position{Line: line, Character: protocol.UInteger(max(sp.End-1, 0))},
	}
}

func markdownHover(value string, sp parser.Span) *protocol.Hover {
	r := toRange(sp)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
		Range: &r,
	}
}

func boolPtr(b bool) *bool {
	return &b
}
