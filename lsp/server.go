// Package lsp is a language server for jnibind.toml manifests and the
// declaration files they include. It reports validation problems as
// diagnostics, shows wire signatures on hover and completes type tags.
package lsp

import (
	"path"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/jnibind/manifest"
)

const lspName = "jnibind-lsp"

var log = commonlog.GetLogger("jnibind.lsp")

// document is one open file and the catalog compiled from its last valid
// content.
type document struct {
	text    string
	catalog *manifest.Catalog
}

// Server bridges LSP editor features to manifest validation.
type Server struct {
	mu   sync.Mutex
	docs map[string]*document // URI → document

	classNames func() []string

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithClassNames supplies extra class names for completion, typically the
// classes a runtime can resolve.
func WithClassNames(fn func() []string) Option {
	return func(s *Server) { s.classNames = fn }
}

// New creates a language server.
func New(opts ...Option) *Server {
	s := &Server{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the server on stdio. Blocks until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("%s %s initializing", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"\"", "."},
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

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	diagnostics := s.update(uri, params.TextDocument.Text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	diagnostics := s.update(uri, whole.Text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
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

// update stores text for uri and returns its diagnostics. The previous
// catalog is kept while the document does not compile.
func (s *Server) update(uri protocol.DocumentUri, text string) []protocol.Diagnostic {
	cat, issues := manifest.Check(path.Base(string(uri)), []byte(text))

	s.mu.Lock()
	doc, ok := s.docs[string(uri)]
	if !ok {
		doc = &document{}
		s.docs[string(uri)] = doc
	}
	doc.text = text
	if cat != nil {
		doc.catalog = cat
	}
	s.mu.Unlock()

	if len(issues) > 0 {
		log.Debugf("%s: %d issues", uri, len(issues))
	}
	return diagnose(issues)
}

func (s *Server) document(uri protocol.DocumentUri) (document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	if !ok {
		return document{}, false
	}
	return *doc, true
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(doc.catalog, prefix), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(doc.catalog, doc.text, params.Position), nil
}

func boolPtr(b bool) *bool {
	return &b
}
