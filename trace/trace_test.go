package trace

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/simjvm"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQuery(t *testing.T) {
	j := openJournal(t)

	entries := []Call{
		{Op: "FindClass", Qualifier: "java/lang/String", Outcome: "class java.lang.String", Duration: time.Millisecond},
		{Op: "FindClass", Qualifier: "com/example/Nope", ErrorKind: "class_not_found", Outcome: "not found", Duration: 3 * time.Millisecond},
		{Op: "CallStaticIntMethod", Qualifier: "parseInt", Signature: "(Ljava/lang/String;)I", Args: `"42"`, Outcome: "42"},
	}
	for _, c := range entries {
		if err := j.Record(c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := j.Calls(Filter{})
	if err != nil {
		t.Fatalf("Calls: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d calls, want 3", len(all))
	}
	if all[0].Op != "CallStaticIntMethod" || all[0].Args != `"42"` {
		t.Errorf("newest call = %+v", all[0])
	}
	if all[0].At.IsZero() {
		t.Error("At was not defaulted")
	}

	failures, err := j.Calls(Filter{Failures: true})
	if err != nil || len(failures) != 1 || failures[0].ErrorKind != "class_not_found" {
		t.Errorf("failures = %+v, %v", failures, err)
	}
	limited, err := j.Calls(Filter{Op: "FindClass", Limit: 1})
	if err != nil || len(limited) != 1 || limited[0].Qualifier != "com/example/Nope" {
		t.Errorf("limited = %+v, %v", limited, err)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	find := stats[0]
	if find.Op != "FindClass" || find.Calls != 2 || find.Errors != 1 {
		t.Errorf("FindClass stat = %+v", find)
	}
	if find.Mean() != 2*time.Millisecond {
		t.Errorf("mean = %v", find.Mean())
	}

	if err := j.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if all, _ := j.Calls(Filter{}); len(all) != 0 {
		t.Errorf("%d calls after reset", len(all))
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Record(Call{Op: "DeleteRef"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	calls, err := j.Calls(Filter{})
	if err != nil || len(calls) != 1 {
		t.Errorf("calls after reopen = %v, %v", calls, err)
	}
	if j.Path() != path {
		t.Errorf("Path = %q", j.Path())
	}
}

func TestWrap(t *testing.T) {
	j := openJournal(t)
	rt := simjvm.New()
	env := jni.NewEnv(Wrap(rt, j))

	integer, err := env.Class("java.lang.Integer")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	if err := integer.Register(func(r *jni.Registrar) {
		r.StaticMethod("parse_int", []any{"string"}, "int")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got, err := integer.CallStatic("parse_int", "42"); err != nil || got != int32(42) {
		t.Fatalf("parse_int = %v, %v", got, err)
	}
	_, err = integer.CallStatic("parse_int", "x")
	var je *jni.JavaException
	if !errors.As(err, &je) {
		t.Fatalf("err = %v, want *JavaException", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rt.LiveRefs() != 0 {
		t.Errorf("%d references leaked", rt.LiveRefs())
	}

	calls, err := j.Calls(Filter{Op: "CallStaticIntMethod"})
	if err != nil {
		t.Fatalf("Calls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d CallStaticIntMethod entries, want 2", len(calls))
	}
	bad, ok := calls[0], calls[1]
	if ok.Outcome != "42" || ok.Args != `"42"` || ok.Signature != "(Ljava/lang/String;)I" {
		t.Errorf("ok call = %+v", ok)
	}
	if bad.ErrorKind != "java_exception" || !strings.Contains(bad.Outcome, "NumberFormatException") {
		t.Errorf("failed call = %+v", bad)
	}
	if !strings.Contains(ok.Qualifier, "parseInt") {
		t.Errorf("qualifier = %q", ok.Qualifier)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	ops := map[string]bool{}
	for _, s := range stats {
		ops[s.Op] = true
	}
	for _, op := range []string{"FindClass", "GetStaticMethodID", "CallStaticIntMethod", "DeleteRef"} {
		if !ops[op] {
			t.Errorf("no %s entries in %v", op, stats)
		}
	}
}

func TestRenderArgs(t *testing.T) {
	got := renderArgs([]any{nil, true, uint16('x'), "a\"b", int64(7), (*jni.Ref)(nil)})
	want := `null, true, 'x', "a\"b", 7, null`
	if got != want {
		t.Errorf("renderArgs = %s, want %s", got, want)
	}
	long := renderArgs([]any{strings.Repeat("x", 1000)})
	if len(long) != maxArgs+3 || !strings.HasSuffix(long, "...") {
		t.Errorf("long args not truncated: %d", len(long))
	}
}
