package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// Client is a jni.Bridge backed by a remote Server. References it returns
// are handles into the server's session; Close releases all of them.
type Client struct {
	transport func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	closer    func() error
	session   string
	timeout   time.Duration
	log       commonlog.Logger

	closeOnce sync.Once
}

var _ jni.Bridge = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient connect.HTTPClient
	connect    []connect.ClientOption
	grpc       []grpc.DialOption
	session    string
	timeout    time.Duration
	log        commonlog.Logger
}

// WithHTTPClient sets the HTTP client used by NewClient.
func WithHTTPClient(c connect.HTTPClient) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithConnectOptions passes options to the Connect client, for example
// connect.WithGRPC() or connect.WithProtoJSON().
func WithConnectOptions(opts ...connect.ClientOption) ClientOption {
	return func(cfg *clientConfig) { cfg.connect = append(cfg.connect, opts...) }
}

// WithDialOptions passes options to grpc.NewClient in DialGRPC. Without
// any, the connection uses insecure transport credentials.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(cfg *clientConfig) { cfg.grpc = append(cfg.grpc, opts...) }
}

// WithSession sets the session id. By default every client gets a new one.
func WithSession(id string) ClientOption {
	return func(cfg *clientConfig) { cfg.session = id }
}

// WithTimeout bounds each remote call. Zero, the default, means calls may
// take as long as the runtime needs.
func WithTimeout(d time.Duration) ClientOption {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(log commonlog.Logger) ClientOption {
	return func(cfg *clientConfig) { cfg.log = log }
}

func newConfig(opts []ClientOption) *clientConfig {
	cfg := &clientConfig{
		httpClient: http.DefaultClient,
		session:    uuid.NewString(),
		log:        commonlog.GetLogger("jnibind.remote"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewClient returns a Client speaking the Connect protocol (or gRPC /
// gRPC-Web, per the Connect options) to the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	cfg := newConfig(opts)
	rpc := connect.NewClient[structpb.Struct, structpb.Struct](
		cfg.httpClient,
		strings.TrimRight(baseURL, "/")+Procedure,
		cfg.connect...,
	)
	return &Client{
		transport: func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			resp, err := rpc.CallUnary(ctx, connect.NewRequest(req))
			if err != nil {
				return nil, err
			}
			return resp.Msg, nil
		},
		closer:  func() error { return nil },
		session: cfg.session,
		timeout: cfg.timeout,
		log:     cfg.log,
	}
}

// DialGRPC returns a Client using a grpc-go connection to target
// ("host:port").
func DialGRPC(target string, opts ...ClientOption) (*Client, error) {
	cfg := newConfig(opts)
	dial := cfg.grpc
	if len(dial) == 0 {
		dial = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, dial...)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", target, err)
	}
	return &Client{
		transport: func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			resp := new(structpb.Struct)
			if err := conn.Invoke(ctx, Procedure, req, resp); err != nil {
				return nil, err
			}
			return resp, nil
		},
		closer:  conn.Close,
		session: cfg.session,
		timeout: cfg.timeout,
		log:     cfg.log,
	}, nil
}

// Session returns the client's session id.
func (c *Client) Session() string { return c.session }

// Close releases every handle the session holds on the server and closes
// the transport.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_, err = c.do("CloseSession", nil)
		if cerr := c.closer(); err == nil {
			err = cerr
		}
	})
	return err
}

// do performs one operation. Binding errors reported by the server are
// rebuilt locally; transport failures wrap ErrBridge.
func (c *Client) do(op string, fields map[string]*structpb.Value) (*structpb.Value, error) {
	if fields == nil {
		fields = map[string]*structpb.Value{}
	}
	fields[keySession] = structpb.NewStringValue(c.session)
	fields[keyOp] = structpb.NewStringValue(op)

	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.transport(ctx, &structpb.Struct{Fields: fields})
	if err != nil {
		c.log.Debugf("%s: transport: %s", op, err)
		return nil, fmt.Errorf("%w: remote %s: %v", jni.ErrBridge, op, err)
	}
	if e, ok := resp.GetFields()[keyError]; ok {
		return nil, decodeError(e)
	}
	return resp.GetFields()[keyResult], nil
}

// ---------------------------------------------------------------------------
// Encoding helpers
// ---------------------------------------------------------------------------

func handleID(r *jni.Ref) (string, error) {
	id, ok := r.Token().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s does not belong to a remote bridge", jni.ErrBridge, r)
	}
	return id, nil
}

func memberHandleID(m *jni.MemberID) (string, error) {
	id, ok := m.Token().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s does not belong to a remote bridge", jni.ErrBridge, m)
	}
	return id, nil
}

func refField(r *jni.Ref) (*structpb.Value, error) {
	if r == nil {
		return structpb.NewStringValue(""), nil
	}
	id, err := handleID(r)
	if err != nil {
		return nil, err
	}
	return structpb.NewStringValue(id), nil
}

func wireRef(r *jni.Ref) (handleInfo, error) {
	id, err := handleID(r)
	if err != nil {
		return handleInfo{}, err
	}
	return handleInfo{ID: id}, nil
}

func localRef(h handleInfo) (*jni.Ref, error) {
	return jni.NewRef(h.ID, h.TypeName, h.Qualifier), nil
}

// target builds the common fields of a call on ref and member.
func target(r *jni.Ref, m *jni.MemberID) (map[string]*structpb.Value, error) {
	t, err := refField(r)
	if err != nil {
		return nil, err
	}
	fields := map[string]*structpb.Value{keyTarget: t}
	if m != nil {
		id, err := memberHandleID(m)
		if err != nil {
			return nil, err
		}
		fields[keyMember] = structpb.NewStringValue(id)
	}
	return fields, nil
}

func callFields(r *jni.Ref, m *jni.MemberID, types []sig.Type, args []any) (map[string]*structpb.Value, error) {
	fields, err := target(r, m)
	if err != nil {
		return nil, err
	}
	vals := make([]*structpb.Value, len(args))
	for i, a := range args {
		if vals[i], err = encodeValue(a, wireRef); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	fields[keyTypes] = encodeTypes(types)
	fields[keyArgs] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	return fields, nil
}

func decodeRef(v *structpb.Value) (*jni.Ref, error) {
	x, err := decodeValue(v, localRef)
	if err != nil || x == nil {
		return nil, err
	}
	r, ok := x.(*jni.Ref)
	if !ok {
		return nil, fmt.Errorf("%w: expected a reference, got %T", jni.ErrBridge, x)
	}
	return r, nil
}

func decodeMember(v *structpb.Value) (*jni.MemberID, error) {
	s := v.GetStructValue()
	switch s.GetFields()["t"].GetStringValue() {
	case letterNull:
		return nil, nil
	case letterMember:
		h := handleOf(s)
		return jni.NewMemberID(h.ID, h.TypeName, h.Qualifier), nil
	}
	return nil, fmt.Errorf("%w: expected a member id", jni.ErrBridge)
}

// decodeAs decodes a primitive result of type T.
func decodeAs[T any](v *structpb.Value) (T, error) {
	var zero T
	x, err := decodeValue(v, localRef)
	if err != nil {
		return zero, err
	}
	t, ok := x.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", jni.ErrBridge, zero, x)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// jni.Bridge
// ---------------------------------------------------------------------------

func (c *Client) FindClass(name string) (*jni.Ref, error) {
	v, err := c.do("FindClass", map[string]*structpb.Value{keyName: structpb.NewStringValue(name)})
	if err != nil {
		return nil, err
	}
	return decodeRef(v)
}

func (c *Client) GetObjectClass(obj *jni.Ref) (*jni.Ref, error) {
	fields, err := target(obj, nil)
	if err != nil {
		return nil, err
	}
	v, err := c.do("GetObjectClass", fields)
	if err != nil {
		return nil, err
	}
	return decodeRef(v)
}

func (c *Client) IsInstanceOf(obj, class *jni.Ref) (bool, error) {
	fields, err := target(obj, nil)
	if err != nil {
		return false, err
	}
	if fields[keyClass], err = refField(class); err != nil {
		return false, err
	}
	v, err := c.do("IsInstanceOf", fields)
	if err != nil {
		return false, err
	}
	return decodeAs[bool](v)
}

func (c *Client) memberID(op string, class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	fields, err := target(class, nil)
	if err != nil {
		return nil, err
	}
	fields[keyName] = structpb.NewStringValue(name)
	fields[keySignature] = structpb.NewStringValue(signature)
	v, err := c.do(op, fields)
	if err != nil {
		return nil, err
	}
	return decodeMember(v)
}

func (c *Client) GetMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return c.memberID("GetMethodID", class, name, signature)
}

func (c *Client) GetStaticMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return c.memberID("GetStaticMethodID", class, name, signature)
}

func (c *Client) GetFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return c.memberID("GetFieldID", class, name, signature)
}

func (c *Client) GetStaticFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return c.memberID("GetStaticFieldID", class, name, signature)
}

// invoke sends a call operation and returns the raw result value.
func (c *Client) invoke(op string, r *jni.Ref, m *jni.MemberID, types []sig.Type, args []any) (*structpb.Value, error) {
	fields, err := callFields(r, m, types, args)
	if err != nil {
		return nil, err
	}
	return c.do(op, fields)
}

func callRef(c *Client, op string, r *jni.Ref, m *jni.MemberID, types []sig.Type, args []any) (*jni.Ref, error) {
	v, err := c.invoke(op, r, m, types, args)
	if err != nil {
		return nil, err
	}
	return decodeRef(v)
}

func callAs[T any](c *Client, op string, r *jni.Ref, m *jni.MemberID, types []sig.Type, args []any) (T, error) {
	v, err := c.invoke(op, r, m, types, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeAs[T](v)
}

func (c *Client) NewObject(class *jni.Ref, ctor *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return callRef(c, "NewObject", class, ctor, argTypes, args)
}

func (c *Client) CallVoidMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	_, err := c.invoke("CallVoidMethod", obj, m, argTypes, args)
	return err
}

func (c *Client) CallObjectMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return callRef(c, "CallObjectMethod", obj, m, argTypes, args)
}

func (c *Client) CallBooleanMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return callAs[bool](c, "CallBooleanMethod", obj, m, argTypes, args)
}

func (c *Client) CallByteMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return callAs[int8](c, "CallByteMethod", obj, m, argTypes, args)
}

func (c *Client) CallCharMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return callAs[uint16](c, "CallCharMethod", obj, m, argTypes, args)
}

func (c *Client) CallShortMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return callAs[int16](c, "CallShortMethod", obj, m, argTypes, args)
}

func (c *Client) CallIntMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return callAs[int32](c, "CallIntMethod", obj, m, argTypes, args)
}

func (c *Client) CallLongMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return callAs[int64](c, "CallLongMethod", obj, m, argTypes, args)
}

func (c *Client) CallFloatMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return callAs[float32](c, "CallFloatMethod", obj, m, argTypes, args)
}

func (c *Client) CallDoubleMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return callAs[float64](c, "CallDoubleMethod", obj, m, argTypes, args)
}

func (c *Client) CallStaticVoidMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	_, err := c.invoke("CallStaticVoidMethod", class, m, argTypes, args)
	return err
}

func (c *Client) CallStaticObjectMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return callRef(c, "CallStaticObjectMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticBooleanMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return callAs[bool](c, "CallStaticBooleanMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticByteMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return callAs[int8](c, "CallStaticByteMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticCharMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return callAs[uint16](c, "CallStaticCharMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticShortMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return callAs[int16](c, "CallStaticShortMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticIntMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return callAs[int32](c, "CallStaticIntMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticLongMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return callAs[int64](c, "CallStaticLongMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticFloatMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return callAs[float32](c, "CallStaticFloatMethod", class, m, argTypes, args)
}

func (c *Client) CallStaticDoubleMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return callAs[float64](c, "CallStaticDoubleMethod", class, m, argTypes, args)
}

func (c *Client) getField(op string, r *jni.Ref, f *jni.MemberID, t sig.Type) (any, error) {
	fields, err := target(r, f)
	if err != nil {
		return nil, err
	}
	fields[keyType] = structpb.NewStringValue(t.String())
	v, err := c.do(op, fields)
	if err != nil {
		return nil, err
	}
	x, err := decodeValue(v, localRef)
	if err != nil {
		return nil, err
	}
	if x == nil && t.IsReference() {
		return (*jni.Ref)(nil), nil
	}
	return x, nil
}

func (c *Client) setField(op string, r *jni.Ref, f *jni.MemberID, t sig.Type, value any) error {
	fields, err := target(r, f)
	if err != nil {
		return err
	}
	fields[keyType] = structpb.NewStringValue(t.String())
	if fields[keyValue], err = encodeValue(value, wireRef); err != nil {
		return err
	}
	_, err = c.do(op, fields)
	return err
}

func (c *Client) GetField(obj *jni.Ref, f *jni.MemberID, t sig.Type) (any, error) {
	return c.getField("GetField", obj, f, t)
}

func (c *Client) SetField(obj *jni.Ref, f *jni.MemberID, t sig.Type, value any) error {
	return c.setField("SetField", obj, f, t, value)
}

func (c *Client) GetStaticField(class *jni.Ref, f *jni.MemberID, t sig.Type) (any, error) {
	return c.getField("GetStaticField", class, f, t)
}

func (c *Client) SetStaticField(class *jni.Ref, f *jni.MemberID, t sig.Type, value any) error {
	return c.setField("SetStaticField", class, f, t, value)
}

func (c *Client) GetStringUTF(str *jni.Ref) (string, error) {
	fields, err := target(str, nil)
	if err != nil {
		return "", err
	}
	v, err := c.do("GetStringUTF", fields)
	if err != nil {
		return "", err
	}
	return decodeAs[string](v)
}

func (c *Client) DeleteRef(ref *jni.Ref) error {
	fields, err := target(ref, nil)
	if err != nil {
		return err
	}
	_, err = c.do("DeleteRef", fields)
	return err
}
