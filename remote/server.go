// Package remote exposes a jni.Bridge over the network and provides client
// Bridges that talk to it.
//
// The protocol is one unary procedure, Procedure, whose request and response
// are google.protobuf.Struct messages. It is served with Connect, so Connect,
// gRPC and gRPC-Web clients all work against the same port.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// Server serves a Bridge to remote clients. Every Bridge call runs on a
// single Worker; references handed to clients live in a HandleStore until
// they are released.
type Server struct {
	worker  *Worker
	handles *HandleStore
	mux     *http.ServeMux
	log     commonlog.Logger

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handleTTL     time.Duration
	sweepInterval time.Duration
	log           commonlog.Logger
	handlerOpts   []connect.HandlerOption
}

// WithHandleTTL sets how long an unused handle survives before the sweeper
// releases it.
func WithHandleTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.handleTTL = ttl }
}

// WithSweepInterval sets how often idle handles are swept. Zero disables
// the sweeper.
func WithSweepInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.sweepInterval = d }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(log commonlog.Logger) ServerOption {
	return func(c *serverConfig) { c.log = log }
}

// WithHandlerOptions passes options to the Connect handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOpts = append(c.handlerOpts, opts...) }
}

// NewServer creates a Server for b. b is only ever called from the
// server's worker goroutine.
func NewServer(b jni.Bridge, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		handleTTL:     10 * time.Minute,
		sweepInterval: time.Minute,
		log:           commonlog.GetLogger("jnibind.remote"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker(b)
	s := &Server{
		worker:  worker,
		handles: NewHandleStore(worker, cfg.log),
		mux:     http.NewServeMux(),
		log:     cfg.log,
	}
	s.mux.Handle(Procedure, connect.NewUnaryHandler(Procedure, s.invoke, cfg.handlerOpts...))

	if cfg.sweepInterval > 0 {
		s.stopSweeper = s.handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)
	}
	return s
}

// Handler returns the HTTP handler serving the protocol.
func (s *Server) Handler() http.Handler { return s.mux }

// Handles returns the server's handle store.
func (s *Server) Handles() *HandleStore { return s.handles }

// HTTPServer returns an http.Server for addr that accepts HTTP/1.1 and
// cleartext HTTP/2, which gRPC clients require.
func (s *Server) HTTPServer(addr string) *http.Server {
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	return &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Noticef("bridge server listening on %s", addr)
	return s.HTTPServer(addr).ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	s.log.Noticef("bridge server listening on %s", l.Addr())
	return s.HTTPServer(l.Addr().String()).Serve(l)
}

// Stop releases every handle and shuts down the worker.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.handles.releaseWhere(func(*handle) bool { return true })
	s.worker.Stop()
}

// invoke is the Connect handler for Procedure.
func (s *Server) invoke(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	c := &call{fields: req.Msg.GetFields(), handles: s.handles}
	c.session = c.str(keySession)
	op := c.str(keyOp)
	if c.session == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session is required"))
	}

	switch op {
	case "":
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("op is required"))
	case "CloseSession":
		// Runs outside the worker: releasing waits for the worker itself.
		n := s.handles.ReleaseSession(c.session)
		s.log.Debugf("session %s closed, %d handles released", c.session, n)
		return respond(structpb.NewNumberValue(float64(n)), nil), nil
	}

	fn, ok := ops[op]
	if !ok {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("unknown op %q", op))
	}

	v, err := s.worker.Do(func(b jni.Bridge) (any, error) {
		return fn(b, c)
	})
	if errors.Is(err, ErrStopped) {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	if err != nil {
		s.log.Debugf("%s: %s", op, err)
		return respond(nil, err), nil
	}
	out, err := c.encodeResult(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(out, nil), nil
}

func respond(result *structpb.Value, err error) *connect.Response[structpb.Struct] {
	fields := map[string]*structpb.Value{}
	if result != nil {
		fields[keyResult] = result
	}
	if err != nil {
		fields[keyError] = encodeError(err)
	}
	return connect.NewResponse(&structpb.Struct{Fields: fields})
}

// ---------------------------------------------------------------------------
// Request decoding
// ---------------------------------------------------------------------------

// call is one decoded request.
type call struct {
	fields  map[string]*structpb.Value
	handles *HandleStore
	session string
}

func (c *call) str(key string) string { return c.fields[key].GetStringValue() }

// ref resolves a reference handle field; an absent field is null.
func (c *call) ref(key string) (*jni.Ref, error) {
	id := c.str(key)
	if id == "" {
		return nil, nil
	}
	r, ok := c.handles.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown handle %s", jni.ErrReleased, id)
	}
	return r, nil
}

func (c *call) member() (*jni.MemberID, error) {
	id := c.str(keyMember)
	m, ok := c.handles.LookupMember(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown member handle %q", jni.ErrBridge, id)
	}
	return m, nil
}

func (c *call) refFromWire(h handleInfo) (*jni.Ref, error) {
	r, ok := c.handles.Lookup(h.ID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown handle %s", jni.ErrReleased, h.ID)
	}
	return r, nil
}

func (c *call) types() ([]sig.Type, error) { return decodeTypes(c.fields[keyTypes]) }

func (c *call) fieldType() (sig.Type, error) {
	return sig.ParsePrinted(c.str(keyType))
}

// args decodes the argument list into the Bridge conventions: null
// becomes nil for string tags and a nil *Ref for reference tags.
func (c *call) args(types []sig.Type) ([]any, error) {
	list := c.fields[keyArgs].GetListValue().GetValues()
	out := make([]any, len(list))
	for i, v := range list {
		var t sig.Type
		if i < len(types) {
			t = types[i]
		}
		x, err := c.value(v, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = x
	}
	return out, nil
}

func (c *call) value(v *structpb.Value, t sig.Type) (any, error) {
	x, err := decodeValue(v, c.refFromWire)
	if err != nil {
		return nil, err
	}
	if x == nil && (t.Kind() == sig.KindObject || t.Kind() == sig.KindArray) {
		return (*jni.Ref)(nil), nil
	}
	return x, nil
}

// encodeResult writes a bridge result, registering returned references and
// member ids as handles owned by the caller's session.
func (c *call) encodeResult(v any) (*structpb.Value, error) {
	if m, ok := v.(*jni.MemberID); ok {
		if m == nil {
			return tagged(letterNull, nil), nil
		}
		id := c.handles.CreateMember(m, c.session)
		return encodeHandle(letterMember, handleInfo{ID: id, TypeName: m.TypeName(), Qualifier: m.Qualifier()}), nil
	}
	return encodeValue(v, func(r *jni.Ref) (handleInfo, error) {
		id := c.handles.Create(r, c.session)
		return handleInfo{ID: id, TypeName: r.TypeName(), Qualifier: r.Qualifier()}, nil
	})
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

type opFunc func(b jni.Bridge, c *call) (any, error)

type invokeFunc func(target *jni.Ref, m *jni.MemberID, types []sig.Type, args ...any) (any, error)

// invoker adapts one typed Call*Method entry point.
func invoker[T any](f func(*jni.Ref, *jni.MemberID, []sig.Type, ...any) (T, error)) invokeFunc {
	return func(target *jni.Ref, m *jni.MemberID, types []sig.Type, args ...any) (any, error) {
		return f(target, m, types, args...)
	}
}

func voidInvoker(f func(*jni.Ref, *jni.MemberID, []sig.Type, ...any) error) invokeFunc {
	return func(target *jni.Ref, m *jni.MemberID, types []sig.Type, args ...any) (any, error) {
		return nil, f(target, m, types, args...)
	}
}

// callOp decodes a call request and runs the entry point pick selects.
func callOp(pick func(b jni.Bridge) invokeFunc) opFunc {
	return func(b jni.Bridge, c *call) (any, error) {
		target, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		m, err := c.member()
		if err != nil {
			return nil, err
		}
		types, err := c.types()
		if err != nil {
			return nil, err
		}
		args, err := c.args(types)
		if err != nil {
			return nil, err
		}
		return pick(b)(target, m, types, args...)
	}
}

func memberOp(pick func(b jni.Bridge) func(*jni.Ref, string, string) (*jni.MemberID, error)) opFunc {
	return func(b jni.Bridge, c *call) (any, error) {
		class, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		return pick(b)(class, c.str(keyName), c.str(keySignature))
	}
}

func getFieldOp(pick func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type) (any, error)) opFunc {
	return func(b jni.Bridge, c *call) (any, error) {
		target, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		m, err := c.member()
		if err != nil {
			return nil, err
		}
		t, err := c.fieldType()
		if err != nil {
			return nil, err
		}
		return pick(b)(target, m, t)
	}
}

func setFieldOp(pick func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type, any) error) opFunc {
	return func(b jni.Bridge, c *call) (any, error) {
		target, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		m, err := c.member()
		if err != nil {
			return nil, err
		}
		t, err := c.fieldType()
		if err != nil {
			return nil, err
		}
		v, err := c.value(c.fields[keyValue], t)
		if err != nil {
			return nil, err
		}
		return nil, pick(b)(target, m, t, v)
	}
}

var ops = map[string]opFunc{
	"FindClass": func(b jni.Bridge, c *call) (any, error) {
		return b.FindClass(c.str(keyName))
	},
	"GetObjectClass": func(b jni.Bridge, c *call) (any, error) {
		obj, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		return b.GetObjectClass(obj)
	},
	"IsInstanceOf": func(b jni.Bridge, c *call) (any, error) {
		obj, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		class, err := c.ref(keyClass)
		if err != nil {
			return nil, err
		}
		return b.IsInstanceOf(obj, class)
	},
	"GetStringUTF": func(b jni.Bridge, c *call) (any, error) {
		str, err := c.ref(keyTarget)
		if err != nil {
			return nil, err
		}
		return b.GetStringUTF(str)
	},
	"DeleteRef": func(b jni.Bridge, c *call) (any, error) {
		id := c.str(keyTarget)
		r, ok := c.handles.Forget(id)
		if !ok || r == nil {
			return nil, fmt.Errorf("%w: unknown handle %s", jni.ErrReleased, id)
		}
		return nil, b.DeleteRef(r)
	},

	"GetMethodID":       memberOp(func(b jni.Bridge) func(*jni.Ref, string, string) (*jni.MemberID, error) { return b.GetMethodID }),
	"GetStaticMethodID": memberOp(func(b jni.Bridge) func(*jni.Ref, string, string) (*jni.MemberID, error) { return b.GetStaticMethodID }),
	"GetFieldID":        memberOp(func(b jni.Bridge) func(*jni.Ref, string, string) (*jni.MemberID, error) { return b.GetFieldID }),
	"GetStaticFieldID":  memberOp(func(b jni.Bridge) func(*jni.Ref, string, string) (*jni.MemberID, error) { return b.GetStaticFieldID }),

	"NewObject": callOp(func(b jni.Bridge) invokeFunc { return invoker(b.NewObject) }),

	"CallVoidMethod":    callOp(func(b jni.Bridge) invokeFunc { return voidInvoker(b.CallVoidMethod) }),
	"CallObjectMethod":  callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallObjectMethod) }),
	"CallBooleanMethod": callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallBooleanMethod) }),
	"CallByteMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallByteMethod) }),
	"CallCharMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallCharMethod) }),
	"CallShortMethod":   callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallShortMethod) }),
	"CallIntMethod":     callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallIntMethod) }),
	"CallLongMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallLongMethod) }),
	"CallFloatMethod":   callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallFloatMethod) }),
	"CallDoubleMethod":  callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallDoubleMethod) }),

	"CallStaticVoidMethod":    callOp(func(b jni.Bridge) invokeFunc { return voidInvoker(b.CallStaticVoidMethod) }),
	"CallStaticObjectMethod":  callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticObjectMethod) }),
	"CallStaticBooleanMethod": callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticBooleanMethod) }),
	"CallStaticByteMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticByteMethod) }),
	"CallStaticCharMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticCharMethod) }),
	"CallStaticShortMethod":   callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticShortMethod) }),
	"CallStaticIntMethod":     callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticIntMethod) }),
	"CallStaticLongMethod":    callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticLongMethod) }),
	"CallStaticFloatMethod":   callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticFloatMethod) }),
	"CallStaticDoubleMethod":  callOp(func(b jni.Bridge) invokeFunc { return invoker(b.CallStaticDoubleMethod) }),

	"GetField":       getFieldOp(func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type) (any, error) { return b.GetField }),
	"GetStaticField": getFieldOp(func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type) (any, error) { return b.GetStaticField }),
	"SetField":       setFieldOp(func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type, any) error { return b.SetField }),
	"SetStaticField": setFieldOp(func(b jni.Bridge) func(*jni.Ref, *jni.MemberID, sig.Type, any) error { return b.SetStaticField }),
}
