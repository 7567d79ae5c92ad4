package sig

import (
	"errors"
	"testing"
)

func TestMethodSignatureOf(t *testing.T) {
	tests := []struct {
		name string
		args []any
		ret  any
		want string
	}{
		{"no args void", nil, "void", "()V"},
		{"int boolean", []any{"int", "boolean"}, "boolean", "(IZ)Z"},
		{"string", []any{"string"}, "string", "(Ljava/lang/String;)Ljava/lang/String;"},
		{"class return", nil, "my.package.MyClass", "()Lmy/package/MyClass;"},
		{"int array", []any{[]any{"int"}}, "void", "([I)V"},
		{"nested arrays", []any{[]any{[]any{"long"}}}, []string{"java.net.URL"}, "([[J)[Ljava/net/URL;"},
		{"every primitive", []any{"byte", "char", "short", "long", "float", "double"}, "int", "(BCSJFD)I"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MethodSignatureOf(tt.args, tt.ret)
			if err != nil {
				t.Fatalf("MethodSignatureOf: %v", err)
			}
			if got != tt.want {
				t.Errorf("MethodSignatureOf(%v, %v) = %q, want %q", tt.args, tt.ret, got, tt.want)
			}
		})
	}
}

func TestMethodSignatureTyped(t *testing.T) {
	got := MethodSignature([]Type{Int, ArrayOf(String), Class("java.util.Map$Entry")}, Void)
	want := "(I[Ljava/lang/String;Ljava/util/Map$Entry;)V"
	if got != want {
		t.Errorf("MethodSignature = %q, want %q", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		tag  any
		want error
	}{
		{"two element array", []any{"int", "int"}, ErrInvalidArrayType},
		{"empty array", []any{}, ErrInvalidArrayType},
		{"array of void", []any{"void"}, ErrInvalidArrayType},
		{"integer", 42, ErrUnknownType},
		{"nil", nil, ErrUnknownType},
		{"empty string", "", ErrUnknownType},
		{"not an identifier", "not a type", ErrUnknownType},
		{"trailing dot", "java.lang.", ErrUnknownType},
		{"zero Type", Type{}, ErrUnknownType},
		{"bad element", []any{3.5}, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tag)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%v) error = %v, want %v", tt.tag, err, tt.want)
			}
		})
	}
}

func TestParseListReportsPosition(t *testing.T) {
	_, err := ParseList([]any{"int", "bogus type"})
	if err == nil || !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if got := err.Error(); got[:10] != "argument 2" {
		t.Errorf("error %q should name argument 2", got)
	}
}

func TestTypeAccessors(t *testing.T) {
	arr := MustParse([]any{"java.net.URL"})
	if arr.Kind() != KindArray {
		t.Fatalf("kind = %v, want array", arr.Kind())
	}
	if arr.Elem().ClassName() != "java.net.URL" {
		t.Errorf("elem class = %q", arr.Elem().ClassName())
	}
	if arr.String() != "[java.net.URL]" {
		t.Errorf("String() = %q", arr.String())
	}
	if arr.LookupName() != "[Ljava/net/URL;" {
		t.Errorf("LookupName() = %q", arr.LookupName())
	}
	if String.ClassName() != StringClass || String.LookupName() != "java/lang/String" {
		t.Errorf("string tag class = %q lookup = %q", String.ClassName(), String.LookupName())
	}
	if !Int.IsPrimitive() || Int.IsReference() {
		t.Error("int should be primitive")
	}
	if !String.IsReference() || Void.IsPrimitive() {
		t.Error("string should be a reference, void not primitive")
	}
	if !ArrayOf(Int).Equal(MustParse([]string{"int"})) {
		t.Error("equal array tags compare unequal")
	}
	if Class("a.B").Equal(Class("a.C")) {
		t.Error("different classes compare equal")
	}
}

func TestValidateArgs(t *testing.T) {
	if err := ValidateArgs([]Type{Int, String}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateArgs([]Type{Int, Void}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("void argument: got %v, want ErrUnknownType", err)
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	args, ret, err := ParseMethodDescriptor("(I[Ljava/lang/String;Ljava/net/URL;)[[Z")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("got %d args, want 3", len(args))
	}
	if !args[0].Equal(Int) || !args[1].Equal(ArrayOf(String)) || !args[2].Equal(Class("java.net.URL")) {
		t.Errorf("args = %v", args)
	}
	if !ret.Equal(ArrayOf(ArrayOf(Boolean))) {
		t.Errorf("ret = %v", ret)
	}

	// Round trip through the encoder.
	for _, desc := range []string{"()V", "(IZ)Z", "(Ljava/lang/String;)Ljava/lang/String;", "([I)V", "(JDF)C"} {
		args, ret, err := ParseMethodDescriptor(desc)
		if err != nil {
			t.Fatalf("ParseMethodDescriptor(%q): %v", desc, err)
		}
		if got := MethodSignature(args, ret); got != desc {
			t.Errorf("round trip %q -> %q", desc, got)
		}
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"", "Q", "Ljava/lang/String", "II", "[V", "(I", "L;"} {
		if _, err := ParseDescriptor(desc); err == nil {
			t.Errorf("ParseDescriptor(%q): expected an error", desc)
		}
	}
	for _, desc := range []string{"", "I)V", "(I", "(I)", "(X)V"} {
		if _, _, err := ParseMethodDescriptor(desc); err == nil {
			t.Errorf("ParseMethodDescriptor(%q): expected an error", desc)
		}
	}
}

func TestParsePrinted(t *testing.T) {
	for _, tag := range []Type{Int, String, Class("java.net.URL"), ArrayOf(ArrayOf(Long)), ArrayOf(Class("a.B"))} {
		got, err := ParsePrinted(tag.String())
		if err != nil {
			t.Fatalf("ParsePrinted(%q): %v", tag.String(), err)
		}
		if !got.Equal(tag) {
			t.Errorf("ParsePrinted(%q) = %v", tag.String(), got)
		}
	}
	if _, err := ParsePrinted("[void]"); !errors.Is(err, ErrInvalidArrayType) {
		t.Errorf("[void]: got %v, want ErrInvalidArrayType", err)
	}
	if _, err := ParsePrinted("[in t]"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("[in t]: got %v, want ErrUnknownType", err)
	}
}
