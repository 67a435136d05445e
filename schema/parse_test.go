package schema_test

import (
	"errors"
	"strings"
	"testing"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/schema"
)

const personProto = `
syntax = "proto3";
package demo;

// A person.
message Person {
  string name = 1;
  int32 id = 2;
  repeated string emails = 3;
  optional int64 score = 4;
  map<string, int32> tag_counts = 5;
  oneof contact {
    string phone = 6;
    Address address = 7;
  }
  Kind kind = 8;
  reserved 10 to 12, 100;
  reserved "legacy";

  enum Kind {
    UNKNOWN = 0;
    HUMAN = 1;
  }
  /* block
     comment */
  string display_name = 9 [json_name = "shownAs"];
}

message Address { string city = 1; }
`

func TestParse_Person(t *testing.T) {
	f, err := schema.Parse("person.proto", []byte(personProto))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Syntax != "proto3" || f.Package != "demo" {
		t.Fatalf("unexpected header: syntax=%q package=%q", f.Syntax, f.Package)
	}
	if len(f.Messages) != 2 {
		t.Fatalf("want 2 top-level messages, got %d", len(f.Messages))
	}
	p := f.Messages[0]
	if p.FullName != "demo.Person" {
		t.Fatalf("full name %q", p.FullName)
	}
	if got := len(p.Fields); got != 9 {
		t.Fatalf("want 9 fields, got %d", got)
	}
	// declaration order is kept
	wantOrder := []string{"name", "id", "emails", "score", "tag_counts", "phone", "address", "kind", "display_name"}
	for i, fd := range p.Fields {
		if fd.Name != wantOrder[i] {
			t.Fatalf("field %d: want %s got %s", i, wantOrder[i], fd.Name)
		}
	}
	if fd := p.FieldByNumber(2); fd == nil || fd.Kind != schema.KindInt32 || fd.HasPresence() {
		t.Fatalf("id should be an implicit-presence int32: %+v", fd)
	}
	if fd := p.FieldByName("score"); !fd.Proto3Optional || !fd.HasPresence() {
		t.Fatalf("score should have explicit presence")
	}
	if fd := p.FieldByName("emails"); fd.Label != schema.LabelRepeated || fd.IsPacked() {
		t.Fatalf("emails should be repeated and not packed")
	}
	m := p.FieldByName("tag_counts")
	if !m.IsMap() || m.Message == nil || m.Message.Name != "TagCountsEntry" || !m.Message.MapEntry {
		t.Fatalf("map entry not synthesized: %+v", m.Message)
	}
	if m.MapKey.Kind != schema.KindString || m.MapValue.Kind != schema.KindInt32 {
		t.Fatalf("map key/value kinds: %v/%v", m.MapKey.Kind, m.MapValue.Kind)
	}
	if m.JSONName != "tagCounts" {
		t.Fatalf("json name %q", m.JSONName)
	}
	if len(p.Oneofs) != 1 || len(p.Oneofs[0].Fields) != 2 || p.FieldByName("phone").Oneof == nil {
		t.Fatalf("oneof not recorded")
	}
	if !p.FieldByName("phone").HasPresence() {
		t.Fatalf("oneof members track presence")
	}
	if fd := p.FieldByName("display_name"); fd.JSONName != "shownAs" || p.FieldByJSONName("shownAs") != fd {
		t.Fatalf("explicit json_name not applied: %q", fd.JSONName)
	}
	if len(p.ReservedRanges) != 2 || p.ReservedRanges[0] != (schema.Range{Start: 10, End: 12}) {
		t.Fatalf("reserved ranges %v", p.ReservedRanges)
	}
	if len(p.ReservedNames) != 1 || p.ReservedNames[0] != "legacy" {
		t.Fatalf("reserved names %v", p.ReservedNames)
	}
	if ty := p.FieldByName("address"); ty.TypeName != "Address" || ty.Message != nil {
		t.Fatalf("parse must leave references unresolved: %+v", ty)
	}
	byNum := p.FieldsByNumber()
	for i := 1; i < len(byNum); i++ {
		if byNum[i-1].Number >= byNum[i].Number {
			t.Fatalf("FieldsByNumber not sorted")
		}
	}
}

func TestParse_Proto2DefaultsAndLabels(t *testing.T) {
	src := `
syntax = "proto2";
message M {
  optional int32 a = 1 [default = -0x10];
  required string b = 2 [default = "h\x69\n"];
  int32 lenient = 3;
  optional double d = 4 [default = inf];
}
`
	f, err := schema.Parse("m.proto", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := f.Messages[0]
	if !m.FieldByName("b").Required || !m.FieldByName("a").HasDefault() {
		t.Fatalf("labels/defaults not recorded")
	}
	if !m.FieldByName("lenient").HasPresence() {
		t.Fatalf("proto2 fields have explicit presence")
	}
}

func TestParse_FileOptionsAndServices(t *testing.T) {
	src := `
syntax = "proto3";
package svc.v1;
import public "other.proto";
import weak "weak.proto";
option go_package = "example.com/svc;svc";
option (my.ext).deep = { a: 1 b { c: "x" } };
message Req {}
message Resp {}
service Greeter {
  option deprecated = true;
  rpc Hello (Req) returns (Resp);
  rpc Chat (stream Req) returns (stream .svc.v1.Resp) {}
}
`
	f, err := schema.Parse("svc.proto", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Imports) != 2 || !f.Imports[0].Public || !f.Imports[1].Weak {
		t.Fatalf("imports %+v", f.Imports)
	}
	if v, ok := f.Option("go_package"); !ok || v != "example.com/svc;svc" {
		t.Fatalf("go_package %q", v)
	}
	if len(f.Services) != 1 || len(f.Services[0].Methods) != 2 {
		t.Fatalf("services %+v", f.Services)
	}
	chat := f.Services[0].Methods[1]
	if !chat.ClientStreaming || !chat.ServerStreaming || chat.OutputName != ".svc.v1.Resp" {
		t.Fatalf("method %+v", chat)
	}
}

func TestParse_SyntaxErrorCarriesPosition(t *testing.T) {
	src := "syntax = \"proto3\";\nmessage A {\n  int32 x = ;\n}\n"
	_, err := schema.Parse("bad.proto", []byte(src))
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if !errors.Is(err, protoskema.ErrSchemaSyntax) {
		t.Fatalf("expected ErrSchemaSyntax, got %v", err)
	}
	iss, ok := protoskema.AsIssues(err)
	if !ok || iss[0].File != "bad.proto" || iss[0].Line != 3 {
		t.Fatalf("expected position bad.proto:3, got %+v", iss)
	}
}

func TestParse_SemanticErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"dup number", `syntax="proto3"; message A { int32 a = 1; int32 b = 1; }`, "already been used"},
		{"dup name", `syntax="proto3"; message A { int32 a = 1; int32 a = 2; }`, "already defined"},
		{"zero number", `syntax="proto3"; message A { int32 a = 0; }`, "out of range"},
		{"implementation range", `syntax="proto3"; message A { int32 a = 19500; }`, "reserved for the protobuf implementation"},
		{"reserved number", `syntax="proto3"; message A { reserved 5; int32 a = 5; }`, "reserved number"},
		{"reserved name", `syntax="proto3"; message A { reserved "a"; int32 a = 5; }`, "is reserved"},
		{"map key", `syntax="proto3"; message A { map<double, int32> m = 1; }`, "invalid map key"},
		{"proto3 required", `syntax="proto3"; message A { required int32 a = 1; }`, "required fields"},
		{"proto3 default", `syntax="proto3"; message A { int32 a = 1 [default = 3]; }`, "default values"},
		{"proto3 enum zero", `syntax="proto3"; enum E { A = 1; }`, "must be zero"},
		{"editions", `edition = "2023"; message A {}`, "editions"},
		{"group", `syntax="proto2"; message A { optional group G = 1 { optional int32 x = 2; } }`, "group fields are not supported"},
		{"group in oneof", `syntax="proto2"; message A { oneof o { group G = 1 { optional int32 x = 2; } } }`, "group fields are not supported"},
		{"oneof label", `syntax="proto3"; message A { oneof o { optional int32 a = 1; } }`, "must not have labels"},
		{"syntax not first", `package p; syntax = "proto3";`, "first statement"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schema.Parse("x.proto", []byte(tc.src))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			iss, _ := protoskema.AsIssues(err)
			if !iss.HasCode(protoskema.CodeSchemaSyntax) || iss[0].Line == 0 {
				t.Fatalf("expected positioned schema_syntax issue, got %+v", iss)
			}
		})
	}
}

func TestParse_EnumAliases(t *testing.T) {
	src := `syntax = "proto3"; enum E { option allow_alias = true; ZERO = 0; NONE = 0; ONE = 1; }`
	f, err := schema.Parse("e.proto", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := f.Enums[0]
	if !e.AllowAlias || e.ValueByNumber(0).Name != "ZERO" || e.ValueByName("NONE").Number != 0 {
		t.Fatalf("first declared name must be canonical")
	}
}
