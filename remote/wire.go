package remote

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// Procedure is the single unary procedure of the bridge protocol. Request
// and response messages are google.protobuf.Struct values.
const Procedure = "/jnibind.v1.BridgeService/Invoke"

// Request keys.
const (
	keySession   = "session"
	keyOp        = "op"
	keyTarget    = "target"
	keyClass     = "class"
	keyMember    = "member"
	keyName      = "name"
	keySignature = "signature"
	keyTypes     = "types"
	keyType      = "type"
	keyArgs      = "args"
	keyValue     = "value"
)

// Response keys.
const (
	keyResult = "result"
	keyError  = "error"
)

// Value letters. Primitive letters follow the descriptor alphabet; 64-bit
// longs travel as decimal strings so they survive the float64 number type.
const (
	letterNull    = "n"
	letterBoolean = "Z"
	letterByte    = "B"
	letterChar    = "C"
	letterShort   = "S"
	letterInt     = "I"
	letterLong    = "J"
	letterFloat   = "F"
	letterDouble  = "D"
	letterString  = "s"
	letterRef     = "r"
	letterMember  = "m"
)

// handleInfo is the wire form of a Ref or MemberID.
type handleInfo struct {
	ID        string
	TypeName  string
	Qualifier string
}

func tagged(letter string, v *structpb.Value) *structpb.Value {
	fields := map[string]*structpb.Value{"t": structpb.NewStringValue(letter)}
	if v != nil {
		fields["v"] = v
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func encodeHandle(letter string, h handleInfo) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"t":    structpb.NewStringValue(letter),
		"id":   structpb.NewStringValue(h.ID),
		"type": structpb.NewStringValue(h.TypeName),
		"q":    structpb.NewStringValue(h.Qualifier),
	}})
}

// encodeFloat writes finite values as numbers and the rest as strings,
// which JSON codecs cannot carry as numbers.
func encodeFloat(f float64) *structpb.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return structpb.NewStringValue(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return structpb.NewNumberValue(f)
}

// encodeValue writes a value that follows the Bridge argument conventions.
// refs converts references to handles; it is only called for non-nil refs.
func encodeValue(v any, refs func(*jni.Ref) (handleInfo, error)) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return tagged(letterNull, nil), nil
	case bool:
		return tagged(letterBoolean, structpb.NewBoolValue(x)), nil
	case int8:
		return tagged(letterByte, structpb.NewNumberValue(float64(x))), nil
	case uint16:
		return tagged(letterChar, structpb.NewNumberValue(float64(x))), nil
	case int16:
		return tagged(letterShort, structpb.NewNumberValue(float64(x))), nil
	case int32:
		return tagged(letterInt, structpb.NewNumberValue(float64(x))), nil
	case int64:
		return tagged(letterLong, structpb.NewStringValue(strconv.FormatInt(x, 10))), nil
	case float32:
		return tagged(letterFloat, encodeFloat(float64(x))), nil
	case float64:
		return tagged(letterDouble, encodeFloat(x)), nil
	case string:
		return tagged(letterString, structpb.NewStringValue(x)), nil
	case *jni.Ref:
		if x == nil {
			return tagged(letterNull, nil), nil
		}
		h, err := refs(x)
		if err != nil {
			return nil, err
		}
		return encodeHandle(letterRef, h), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %T", jni.ErrBridge, v)
}

func decodeFloat(v *structpb.Value) (float64, error) {
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return strconv.ParseFloat(s.StringValue, 64)
	}
	return v.GetNumberValue(), nil
}

// decodeValue reads a value written by encodeValue. Null decodes to untyped
// nil; refs resolves reference handles.
func decodeValue(v *structpb.Value, refs func(handleInfo) (*jni.Ref, error)) (any, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("%w: malformed value", jni.ErrBridge)
	}
	letter := s.Fields["t"].GetStringValue()
	val := s.Fields["v"]
	switch letter {
	case letterNull:
		return nil, nil
	case letterBoolean:
		return val.GetBoolValue(), nil
	case letterByte:
		return int8(val.GetNumberValue()), nil
	case letterChar:
		return uint16(val.GetNumberValue()), nil
	case letterShort:
		return int16(val.GetNumberValue()), nil
	case letterInt:
		return int32(val.GetNumberValue()), nil
	case letterLong:
		n, err := strconv.ParseInt(val.GetStringValue(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad long: %v", jni.ErrBridge, err)
		}
		return n, nil
	case letterFloat:
		f, err := decodeFloat(val)
		return float32(f), err
	case letterDouble:
		return decodeFloat(val)
	case letterString:
		return val.GetStringValue(), nil
	case letterRef:
		return refs(handleOf(s))
	}
	return nil, fmt.Errorf("%w: unknown value letter %q", jni.ErrBridge, letter)
}

func handleOf(s *structpb.Struct) handleInfo {
	return handleInfo{
		ID:        s.Fields["id"].GetStringValue(),
		TypeName:  s.Fields["type"].GetStringValue(),
		Qualifier: s.Fields["q"].GetStringValue(),
	}
}

// encodeTypes writes tags in their printed form.
func encodeTypes(types []sig.Type) *structpb.Value {
	vals := make([]*structpb.Value, len(types))
	for i, t := range types {
		vals[i] = structpb.NewStringValue(t.String())
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func decodeTypes(v *structpb.Value) ([]sig.Type, error) {
	list := v.GetListValue().GetValues()
	out := make([]sig.Type, len(list))
	for i, e := range list {
		t, err := sig.ParsePrinted(e.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: type %d: %v", jni.ErrBridge, i+1, err)
		}
		out[i] = t
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// kindPrefixes strips the sentinel text an error already carries, so the
// rebuilt error does not repeat it.
var kindPrefixes = []error{
	jni.ErrClassNotFound,
	jni.ErrNoSuchMethod,
	jni.ErrWrongArgumentType,
	jni.ErrReleased,
	jni.ErrJavaException,
	jni.ErrBridge,
}

func encodeError(err error) *structpb.Value {
	kind := jni.ErrorKind(err)
	if kind == "" {
		kind = "bridge"
	}
	msg := err.Error()
	class := ""
	var jex *jni.JavaException
	if errors.As(err, &jex) {
		class, msg = jex.ClassName, jex.Message
	} else {
		for _, k := range kindPrefixes {
			if p := k.Error() + ": "; strings.HasPrefix(msg, p) {
				msg = msg[len(p):]
				break
			}
		}
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":    structpb.NewStringValue(kind),
		"message": structpb.NewStringValue(msg),
		"class":   structpb.NewStringValue(class),
	}})
}

func decodeError(v *structpb.Value) error {
	s := v.GetStructValue()
	if s == nil {
		return fmt.Errorf("%w: malformed error", jni.ErrBridge)
	}
	return jni.ErrorOfKind(
		s.Fields["kind"].GetStringValue(),
		s.Fields["message"].GetStringValue(),
		s.Fields["class"].GetStringValue(),
	)
}
