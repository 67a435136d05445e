package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	protoskema "github.com/reoring/protoskema"
)

const personProto = `syntax = "proto3";
package demo;
import "status.proto";
message Person {
  string name = 1;
  int32 id = 2;
  Status status = 3;
}
`

const statusProto = `syntax = "proto3";
package demo;
enum Status { UNKNOWN = 0; ACTIVE = 1; }
`

func protoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"person.proto": personProto, "status.proto": statusProto} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()
	t.Cleanup(protoskema.UseDefaultJSONDriver)
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestToProto_Literal(t *testing.T) {
	dir := protoDir(t)
	out, stderr, code := runCLI(t, "", "to-proto", "-I", dir, "person.proto", "Person", `{"name":"A","id":7}`)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !bytes.Equal([]byte(out), []byte{0x0A, 0x01, 0x41, 0x10, 0x07}) {
		t.Fatalf("unexpected output % X", out)
	}
}

func TestToJSON_DefaultsMatchClassicTool(t *testing.T) {
	dir := protoDir(t)
	out, stderr, code := runCLI(t, "", "ToJson", "--proto_path", dir, "person.proto", "Person", "CgFBEAcYAQ==")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	want := "{\n  \"name\": \"A\",\n  \"id\": 7,\n  \"status\": \"ACTIVE\"\n}\n"
	if out != want {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRoundTrip_StdinAndFile(t *testing.T) {
	dir := protoDir(t)
	bin, stderr, code := runCLI(t, `{"name":"B","status":"ACTIVE"}`, "ToProto", "-I", dir, "person.proto", "demo.Person")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	p := filepath.Join(t.TempDir(), "msg.bin")
	if err := os.WriteFile(p, []byte(bin), 0o644); err != nil {
		t.Fatal(err)
	}
	out, stderr, code := runCLI(t, "", "to-json", "-I", dir, "--add-whitespace=false", "--preserve-field-names=false", "--json-driver", "go-json", "person.proto", "Person", "@"+p)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if out != "{\"name\":\"B\",\"status\":\"ACTIVE\"}\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSchemaDiagnostics(t *testing.T) {
	dir := t.TempDir()
	bad := "syntax = \"proto3\";\nmessage M {\n  Missing m = 1;\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.proto"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, code := runCLI(t, "", "to-proto", "-I", dir, "bad.proto", "M", "{}")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error occurred for bad.proto:3:") {
		t.Fatalf("diagnostic missing from stderr: %s", stderr)
	}
}

func TestConversionErrorsExitNonZero(t *testing.T) {
	dir := protoDir(t)
	if _, stderr, code := runCLI(t, "", "to-proto", "-I", dir, "person.proto", "Person", `{"id":"x"}`); code != 1 || !strings.Contains(stderr, "Error:") {
		t.Fatalf("expected failure, got %d %s", code, stderr)
	}
	if _, _, code := runCLI(t, "", "to-proto", "-I", dir, "--strict", "person.proto", "Person", `{"nick":"x"}`); code != 1 {
		t.Fatalf("strict mode must reject unknown keys")
	}
	if _, _, code := runCLI(t, "", "to-json", "-I", dir, "person.proto", "Nobody", "AA=="); code != 1 {
		t.Fatalf("unknown message must fail")
	}
	if _, _, code := runCLI(t, "", "bogus"); code != 1 {
		t.Fatalf("unknown command must fail")
	}
}

func TestConfigFile(t *testing.T) {
	dir := protoDir(t)
	cfg := filepath.Join(t.TempDir(), "protoskema.toml")
	body := "proto_path = [\"" + filepath.ToSlash(dir) + "\"]\njson_driver = \"go-json\"\n\n[print]\nadd_whitespace = false\nalways_print_primitive_fields = true\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, stderr, code := runCLI(t, "", "to-json", "--config", cfg, "person.proto", "Person", "")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if out != "{\"name\":\"\",\"id\":0,\"status\":\"UNKNOWN\"}\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDescribe(t *testing.T) {
	dir := protoDir(t)
	setPath := filepath.Join(t.TempDir(), "set.pb")
	out, stderr, code := runCLI(t, "", "describe", "-I", dir, "-o", setPath, "person.proto", "Person")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(out, `"Person"`) || !strings.Contains(out, `".demo.Status"`) {
		t.Fatalf("unexpected describe output:\n%s", out)
	}
	b, err := os.ReadFile(setPath)
	if err != nil {
		t.Fatal(err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &set); err != nil {
		t.Fatal(err)
	}
	if len(set.File) != 2 || set.File[0].GetName() != "status.proto" || set.File[1].GetName() != "person.proto" {
		t.Fatalf("unexpected descriptor set order: %v", set.File)
	}
}

func TestVerboseDumpsDescriptors(t *testing.T) {
	dir := protoDir(t)
	_, stderr, code := runCLI(t, "", "to-proto", "--verbose", "-I", dir, "person.proto", "Person", "{}")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, `"person.proto"`) || !strings.Contains(stderr, "configured") {
		t.Fatalf("verbose output missing: %s", stderr)
	}
}
