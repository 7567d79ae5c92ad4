package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/manifest"
	"github.com/chazu/jnibind/remote"
	"github.com/chazu/jnibind/sig"
	"github.com/chazu/jnibind/simjvm"
	"github.com/chazu/jnibind/trace"
)

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	quiet = false
	sigReturns, sigField = "void", false
	callURL, callGRPC, callArgTypes, callReturns = "", "", nil, "void"
	genOutput, genPackage, genDryRun = "", "", false
	catalogOutput, catalogShow = "jnibind.cat", ""
	journalOp, journalFailures, journalLimit, journalReset = "", false, 20, false
}

const project = `
[project]
package = "lang"

[[class]]
name = "java.lang.Integer"

[[class.static_method]]
name = "parse_int"
args = ["string"]
returns = "int"
`

func writeProject(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jnibind.toml"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSigCommand(t *testing.T) {
	out, err := run(t, "sig", "string", "[int]", "--returns", "boolean")
	if err != nil {
		t.Fatalf("sig: %v", err)
	}
	if strings.TrimSpace(out) != "(Ljava/lang/String;[I)Z" {
		t.Errorf("sig = %q", out)
	}

	out, err = run(t, "sig", "--field", "[[java.net.URL]]")
	if err != nil || strings.TrimSpace(out) != "[[Ljava/net/URL;" {
		t.Errorf("sig --field = %q, %v", out, err)
	}

	if _, err := run(t, "sig", "void"); err == nil {
		t.Error("void argument accepted")
	}
	if _, err := run(t, "sig", "not a tag"); err == nil {
		t.Error("bad tag accepted")
	}
}

func TestCheckCommand(t *testing.T) {
	dir := writeProject(t, project)
	out, err := run(t, "check", dir)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "1 classes, 1 members") {
		t.Errorf("check output = %q", out)
	}

	bad := writeProject(t, strings.Replace(project, `returns = "int"`, `returns = "not a tag"`, 1))
	out, err = run(t, "check", bad)
	if err == nil {
		t.Fatal("check accepted an unknown tag")
	}
	if !strings.Contains(out, "class.0.static_method.0") {
		t.Errorf("check output = %q", out)
	}
}

func TestGenCommand(t *testing.T) {
	dir := writeProject(t, project)
	out, err := run(t, "gen", dir, "--dry-run")
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	for _, want := range []string{"package lang", "func (k *Integer) ParseInt(a0 string) (int32, error)"} {
		if !strings.Contains(out, want) {
			t.Errorf("generated code lacks %q", want)
		}
	}

	outDir := filepath.Join(t.TempDir(), "out")
	if _, err := run(t, "gen", dir, "-o", outDir, "-q"); err != nil {
		t.Fatalf("gen -o: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "jnibind_gen.go")); err != nil {
		t.Errorf("generated file missing: %v", err)
	}
}

func TestCatalogCommand(t *testing.T) {
	dir := writeProject(t, project)
	path := filepath.Join(t.TempDir(), "lang.cat")
	if _, err := run(t, "catalog", dir, "-o", path); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	out, err := run(t, "catalog", "--show", path)
	if err != nil {
		t.Fatalf("catalog --show: %v", err)
	}
	if !strings.Contains(out, "java.lang.Integer") || !strings.Contains(out, "(Ljava/lang/String;)I") {
		t.Errorf("catalog --show = %q", out)
	}
}

func TestCallLocal(t *testing.T) {
	out, err := run(t, "call", "java.lang.Integer", "parse_int", "42", "-a", "string", "-r", "int")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if strings.TrimSpace(out) != "42" {
		t.Errorf("call = %q", out)
	}

	_, err = run(t, "call", "java.lang.Integer", "parse_int", "x", "-a", "string", "-r", "int")
	if err == nil || !strings.Contains(err.Error(), "NumberFormatException") {
		t.Errorf("call error = %v", err)
	}

	if _, err := run(t, "call", "java.lang.Math", "max", "1", "-a", "int,int", "-r", "int"); err == nil {
		t.Error("argument count mismatch accepted")
	}
}

func TestCallRemote(t *testing.T) {
	rt := simjvm.New()
	srv := remote.NewServer(rt)
	defer srv.Stop()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	out, err := run(t, "call", "java.lang.Math", "max", "3", "9", "-a", "int,int", "-r", "int", "--url", ts.URL)
	if err != nil {
		t.Fatalf("call --url: %v", err)
	}
	if strings.TrimSpace(out) != "9" {
		t.Errorf("call --url = %q", out)
	}
	if n := srv.Handles().Len(); n != 0 {
		t.Errorf("%d handles left after the session closed", n)
	}
}

func TestJournalCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	j, err := trace.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	j.Record(trace.Call{Op: "FindClass", Qualifier: "java/lang/Integer", Outcome: "class java.lang.Integer"})
	j.Record(trace.Call{Op: "FindClass", Qualifier: "a/B", ErrorKind: "class_not_found", Outcome: "jni: class not found"})
	j.Close()

	out, err := run(t, "journal", path, "--failures")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if !strings.Contains(out, "FindClass") || !strings.Contains(out, "a/B") {
		t.Errorf("journal output = %q", out)
	}
	if _, err := run(t, "journal", path, "--reset"); err != nil {
		t.Fatalf("journal --reset: %v", err)
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		tag  sig.Type
		in   string
		want any
	}{
		{sig.Boolean, "true", true},
		{sig.Byte, "-8", int8(-8)},
		{sig.Char, "é", uint16('é')},
		{sig.Short, "0x10", int16(16)},
		{sig.Int, "42", int32(42)},
		{sig.Long, "9007199254740993", int64(9007199254740993)},
		{sig.Float, "1.5", float32(1.5)},
		{sig.Double, "2.25", 2.25},
		{sig.String, "hi", "hi"},
		{sig.String, "null", nil},
		{sig.Class("java.net.URL"), "null", nil},
	}
	for _, tt := range tests {
		got, err := parseArg(tt.tag, tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseArg(%s, %q) = %v (%T), %v; want %v", tt.tag, tt.in, got, got, err, tt.want)
		}
	}

	for _, bad := range []struct {
		tag sig.Type
		in  string
	}{
		{sig.Byte, "200"},
		{sig.Char, "ab"},
		{sig.Int, "x"},
		{sig.Class("java.net.URL"), "http://x"},
		{sig.Void, ""},
	} {
		if _, err := parseArg(bad.tag, bad.in); err == nil {
			t.Errorf("parseArg(%s, %q) succeeded", bad.tag, bad.in)
		}
	}
}

func TestServeConfig(t *testing.T) {
	defer func() {
		serveAddr, serveTTL, serveSweep, serveTrace = manifest.DefaultAddr, manifest.DefaultHandleTTL, manifest.DefaultSweepInterval, ""
	}()
	dir := writeProject(t, project+`
[server]
addr = "127.0.0.1:9999"
handle_ttl = "30s"

[trace]
path = "calls.db"
`)
	m, err := manifest.FindAndLoad(dir)
	if err != nil || m == nil {
		t.Fatalf("FindAndLoad: %v, %v", m, err)
	}
	applyServerConfig(serveCmd, m)
	if serveAddr != "127.0.0.1:9999" || serveTTL != 30*time.Second || !filepath.IsAbs(serveTrace) || filepath.Base(serveTrace) != "calls.db" {
		t.Errorf("addr=%q ttl=%v trace=%q", serveAddr, serveTTL, serveTrace)
	}
	if serveSweep != manifest.DefaultSweepInterval {
		t.Errorf("sweep = %v, want the default", serveSweep)
	}

	if err := preflight(simjvm.New(), m); err != nil {
		t.Errorf("preflight: %v", err)
	}
}

func TestServePreflightFails(t *testing.T) {
	dir := writeProject(t, `
[[class]]
name = "com.example.Missing"
`)
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		t.Fatal(err)
	}
	err = preflight(simjvm.New(), m)
	if !errors.Is(err, jni.ErrClassNotFound) {
		t.Fatalf("preflight = %v, want ErrClassNotFound", err)
	}
	if !strings.Contains(err.Error(), "com.example.Missing") {
		t.Errorf("error %q does not name the class", err)
	}
}
