package jsoncodec_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/dynamic"
	"github.com/reoring/protoskema/jsoncodec"
	"github.com/reoring/protoskema/schema"
	drvgojson "github.com/reoring/protoskema/source/gojson"
	"github.com/reoring/protoskema/wire"
)

const jsonProto = `
syntax = "proto3";
package j;
message Account {
  Status status = 1;
  string owner_name = 2;
}
enum Status { UNKNOWN = 0; ACTIVE = 1; }
message All {
  int32 i32 = 1;
  int64 i64 = 2;
  uint32 u32 = 3;
  uint64 u64 = 4;
  sint64 s64 = 5;
  fixed64 f64 = 6;
  bool b = 7;
  float fl = 8;
  double db = 9;
  string s = 10;
  bytes by = 11;
  Status status = 12;
  repeated int32 nums = 13;
  repeated Account accounts = 14;
  map<string, int64> counts = 15;
  map<int32, Account> by_id = 16;
  Account main = 17;
  optional int32 opt = 18;
  oneof pick { string left = 19; Account right = 20; }
}
message Node { Node child = 1; int32 v = 2; }
`

func msgType(t *testing.T, name string) *schema.MessageDescriptor {
	t.Helper()
	cat, err := schema.Resolve("j.proto", schema.MapSource{"j.proto": jsonProto})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	md, err := cat.LookupMessage(name)
	if err != nil {
		t.Fatal(err)
	}
	return md
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func marshal(t *testing.T, m *dynamic.Message, opts jsoncodec.MarshalOptions) string {
	t.Helper()
	out, err := opts.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}

func wantCode(t *testing.T, err error, code string) protoskema.Issue {
	t.Helper()
	iss, ok := protoskema.AsIssues(err)
	if !ok || len(iss) == 0 {
		t.Fatalf("expected %s issue, got %v", code, err)
	}
	if iss[0].Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, iss[0].Code, err)
	}
	return iss[0]
}

func TestMarshal_Int64Quoted(t *testing.T) {
	md := msgType(t, "All")
	m := dynamic.New(md)
	must(t, m.Set(2, int64(math.MaxInt64)))
	must(t, m.Set(1, int32(-5)))
	if got := marshal(t, m, jsoncodec.MarshalOptions{}); got != `{"i32":-5,"i64":"9223372036854775807"}` {
		t.Fatalf("unexpected json %s", got)
	}
}

func TestMarshal_EnumDefaultForcedPrint(t *testing.T) {
	m := dynamic.New(msgType(t, "Account"))
	if got := marshal(t, m, jsoncodec.MarshalOptions{}); got != `{}` {
		t.Fatalf("absent fields must be omitted, got %s", got)
	}
	got := marshal(t, m, jsoncodec.MarshalOptions{AlwaysPrintPrimitiveFields: true})
	if got != `{"status":"UNKNOWN","ownerName":""}` {
		t.Fatalf("unexpected forced output %s", got)
	}
	must(t, m.Set(1, schema.EnumNumber(1)))
	if got := marshal(t, m, jsoncodec.MarshalOptions{AlwaysPrintEnumsAsInts: true, PreserveFieldNames: true}); got != `{"status":1}` {
		t.Fatalf("unexpected enum-as-int output %s", got)
	}
}

func TestMarshal_ForcedPrintSkipsOneofAndOptional(t *testing.T) {
	m := dynamic.New(msgType(t, "All"))
	got := marshal(t, m, jsoncodec.MarshalOptions{AlwaysPrintPrimitiveFields: true})
	for _, absent := range []string{`"opt"`, `"left"`, `"main"`, `"nums"`, `"counts"`} {
		if strings.Contains(got, absent) {
			t.Fatalf("%s must not be forced: %s", absent, got)
		}
	}
	for _, present := range []string{`"i64":"0"`, `"by":""`, `"fl":0`, `"b":false`} {
		if !strings.Contains(got, present) {
			t.Fatalf("%s missing from %s", present, got)
		}
	}
}

func TestMarshal_CompositesAndSpecials(t *testing.T) {
	md := msgType(t, "All")
	m := dynamic.New(md)
	must(t, m.Set(8, float32(math.Inf(1))))
	must(t, m.Set(9, math.NaN()))
	must(t, m.Set(11, []byte{0xfb, 0xff}))
	must(t, m.Append(13, int32(1)))
	must(t, m.Append(13, int32(2)))
	must(t, m.MapPut(15, "z", int64(1)))
	must(t, m.MapPut(15, "a", int64(2)))
	acc := dynamic.New(msgType(t, "Account"))
	must(t, acc.Set(2, "ann \"q\" <b>&c"))
	must(t, m.MapPut(16, int32(7), acc))
	got := marshal(t, m, jsoncodec.MarshalOptions{})
	want := `{"fl":"Infinity","db":"NaN","by":"+/8=","nums":[1,2],"counts":{"z":"1","a":"2"},"byId":{"7":{"ownerName":"ann \"q\" <b>&c"}}}`
	if got != want {
		t.Fatalf("unexpected json\n got %s\nwant %s", got, want)
	}
}

func TestMarshal_Indent(t *testing.T) {
	m := dynamic.New(msgType(t, "Account"))
	must(t, m.Set(2, "x"))
	got := marshal(t, m, jsoncodec.MarshalOptions{AddWhitespace: true})
	if got != "{\n  \"ownerName\": \"x\"\n}" {
		t.Fatalf("unexpected indented output %q", got)
	}
}

func TestMarshal_InvalidUTF8(t *testing.T) {
	m := dynamic.New(msgType(t, "Account"))
	must(t, m.Set(2, "bad\xff"))
	_, err := jsoncodec.Marshal(m)
	it := wantCode(t, err, protoskema.CodeInvalidUTF8)
	if it.Path != "/ownerName" {
		t.Fatalf("unexpected path %q", it.Path)
	}
}

func TestUnmarshal_NamesAndLenientNumbers(t *testing.T) {
	md := msgType(t, "All")
	in := `{"i32":"12","i64":1e3,"u64":"18446744073709551615","s64":-4,"fl":"-Infinity",
	 "by":"-_8","status":"ACTIVE","nums":[1,"2",3.0],"by_id":{"5":{"owner_name":"o","status":1}},
	 "counts":{"k":"9"},"opt":0,"right":{}}`
	m, err := jsoncodec.Unmarshal(md, []byte(in))
	must(t, err)
	if m.Get(1) != int32(12) || m.Get(2) != int64(1000) || m.Get(4) != uint64(math.MaxUint64) || m.Get(5) != int64(-4) {
		t.Fatalf("integers decoded wrong: %v %v %v %v", m.Get(1), m.Get(2), m.Get(4), m.Get(5))
	}
	if f := m.Get(8).(float32); !math.IsInf(float64(f), -1) {
		t.Fatalf("expected -Inf, got %v", f)
	}
	if b := m.Get(11).([]byte); len(b) != 2 || b[0] != 0xfb || b[1] != 0xff {
		t.Fatalf("url-safe base64 decoded wrong: %x", b)
	}
	if m.Get(12) != schema.EnumNumber(1) || m.Len(13) != 3 || m.Index(13, 1) != int32(2) {
		t.Fatalf("enum or list decoded wrong")
	}
	v, ok := m.MapGet(16, int32(5))
	if !ok || v.(*dynamic.Message).Get(2) != "o" {
		t.Fatalf("message map value decoded wrong: %v", v)
	}
	if !m.Has(18) {
		t.Fatalf("explicit zero on optional field must be present")
	}
	if fd := m.WhichOneof(md.Oneofs[0]); fd == nil || fd.Name != "right" {
		t.Fatalf("oneof member not set: %v", fd)
	}
}

func TestUnmarshal_Null(t *testing.T) {
	md := msgType(t, "All")
	m, err := jsoncodec.Unmarshal(md, []byte(`{"i32":3,"i32":null,"main":null}`))
	must(t, err)
	if m.Has(1) || m.Has(17) {
		t.Fatalf("null must leave singular fields absent")
	}
	_, err = jsoncodec.Unmarshal(md, []byte(`{"nums":null}`))
	if it := wantCode(t, err, protoskema.CodeTypeMismatch); it.Path != "/nums" {
		t.Fatalf("unexpected path %q", it.Path)
	}
	_, err = jsoncodec.Unmarshal(md, []byte(`{"counts":{"a":null}}`))
	wantCode(t, err, protoskema.CodeTypeMismatch)
}

func TestUnmarshal_UnknownKeys(t *testing.T) {
	md := msgType(t, "Account")
	in := []byte(`{"extra":{"deep":[1,{"x":null}]},"ownerName":"a"}`)
	m, err := jsoncodec.Unmarshal(md, in)
	must(t, err)
	if m.Get(2) != "a" {
		t.Fatalf("known field after skipped value lost")
	}
	_, err = jsoncodec.UnmarshalOptions{Unknown: protoskema.UnknownStrict}.Unmarshal(md, in)
	if it := wantCode(t, err, protoskema.CodeUnknownKey); it.Path != "/extra" {
		t.Fatalf("unexpected path %q", it.Path)
	}
	if !errors.Is(err, protoskema.ErrUnknownKey) {
		t.Fatalf("errors.Is must match the sentinel")
	}
}

func TestUnmarshal_DuplicateKeys(t *testing.T) {
	md := msgType(t, "Account")
	in := []byte(`{"ownerName":"a","ownerName":"b"}`)
	m, err := jsoncodec.Unmarshal(md, in)
	must(t, err)
	if m.Get(2) != "b" {
		t.Fatalf("last write must win, got %v", m.Get(2))
	}
	var warned []protoskema.Issue
	_, err = jsoncodec.UnmarshalOptions{
		Strictness: protoskema.Strictness{OnDuplicateKey: protoskema.Warn},
		IssueSink:  func(it protoskema.Issue) { warned = append(warned, it) },
	}.Unmarshal(md, in)
	must(t, err)
	if len(warned) != 1 || warned[0].Code != protoskema.CodeDuplicateKey {
		t.Fatalf("expected one duplicate warning, got %v", warned)
	}
	_, err = jsoncodec.UnmarshalOptions{Strictness: protoskema.Strictness{OnDuplicateKey: protoskema.Error}}.Unmarshal(md, in)
	wantCode(t, err, protoskema.CodeDuplicateKey)
}

func TestUnmarshal_Errors(t *testing.T) {
	md := msgType(t, "All")
	cases := []struct {
		name string
		in   string
		code string
		path string
	}{
		{"int32 overflow", `{"i32":2147483648}`, protoskema.CodeOverflow, "/i32"},
		{"uint negative", `{"u32":-1}`, protoskema.CodeOverflow, "/u32"},
		{"fraction", `{"i64":1.5}`, protoskema.CodeTypeMismatch, "/i64"},
		{"enum name", `{"status":"GONE"}`, protoskema.CodeInvalidEnum, "/status"},
		{"bool as string", `{"b":"true"}`, protoskema.CodeTypeMismatch, "/b"},
		{"bad base64", `{"by":"!!"}`, protoskema.CodeTypeMismatch, "/by"},
		{"nested path", `{"accounts":[{},{"status":"NOPE"}]}`, protoskema.CodeInvalidEnum, "/accounts/1/status"},
		{"map key", `{"byId":{"x":{}}}`, protoskema.CodeTypeMismatch, "/byId/x"},
		{"top-level array", `[]`, protoskema.CodeTypeMismatch, "/"},
		{"trailing data", `{} {}`, protoskema.CodeJSONSyntax, ""},
		{"truncated", `{"i32":1`, protoskema.CodeJSONSyntax, ""},
		{"bad token", `{"i32":tru}`, protoskema.CodeJSONSyntax, ""},
		{"invalid utf8", "{\"s\":\"\xc3\x28\"}", protoskema.CodeInvalidUTF8, ""},
		{"lone high surrogate", `{"s":"\ud800x"}`, protoskema.CodeInvalidUTF8, ""},
		{"lone low surrogate", `{"s":"\uDC00"}`, protoskema.CodeInvalidUTF8, ""},
		{"high then non-low", `{"s":"\ud800\u0041"}`, protoskema.CodeInvalidUTF8, ""},
		{"surrogate in key", `{"\ud800":1}`, protoskema.CodeInvalidUTF8, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jsoncodec.Unmarshal(md, []byte(tc.in))
			it := wantCode(t, err, tc.code)
			if tc.path != "" && it.Path != tc.path {
				t.Fatalf("path = %q, want %q", it.Path, tc.path)
			}
		})
	}
}

func TestUnmarshal_InvalidUTF8Offset(t *testing.T) {
	_, err := jsoncodec.Unmarshal(msgType(t, "All"), []byte("{\"s\":\"ab\xff\"}"))
	if it := wantCode(t, err, protoskema.CodeInvalidUTF8); it.Offset != 8 {
		t.Fatalf("offset = %d, want 8", it.Offset)
	}
}

func TestUnmarshal_SurrogateEscapes(t *testing.T) {
	md := msgType(t, "All")
	for _, drv := range []protoskema.JSONDriver{protoskema.DefaultJSONDriver(), drvgojson.Driver()} {
		_, err := jsoncodec.UnmarshalOptions{Driver: drv}.Unmarshal(md, []byte(`{"i32":1,"s":"\ud800x"}`))
		if it := wantCode(t, err, protoskema.CodeInvalidUTF8); it.Offset != 13 {
			t.Fatalf("%s: offset = %d, want 13", drv.Name(), it.Offset)
		}
		m, err := jsoncodec.UnmarshalOptions{Driver: drv}.Unmarshal(md, []byte(`{"s":"\ud83d\ude00 \\ud800 \u00e9"}`))
		if err != nil {
			t.Fatalf("%s: %v", drv.Name(), err)
		}
		if got := m.Get(10); got != "\U0001F600 \\ud800 \u00e9" {
			t.Fatalf("%s: s = %q", drv.Name(), got)
		}
	}
}

func TestUnmarshalInto_LeavesMessageOnError(t *testing.T) {
	md := msgType(t, "All")
	m := dynamic.New(md)
	must(t, m.Set(10, "orig"))
	must(t, m.Append(13, int32(7)))
	before := m.Clone()
	for _, in := range []string{
		`{"s":"changed","i32":"oops"}`,
		`{"nums":[1,2],"s":"changed","status":"GONE"}`,
		`{"s":"changed","i32":1`,
	} {
		if err := (jsoncodec.UnmarshalOptions{}).UnmarshalInto(m, []byte(in)); err == nil {
			t.Fatalf("expected error for %s", in)
		}
		if !dynamic.Equal(m, before) {
			t.Fatalf("failed decode of %s modified the message", in)
		}
	}
	must(t, jsoncodec.UnmarshalOptions{}.UnmarshalInto(m, []byte(`{"i32":3}`)))
	if m.Get(10) != "orig" || m.Get(1) != int32(3) || m.Len(13) != 1 {
		t.Fatalf("merge lost fields: s=%v i32=%v nums=%d", m.Get(10), m.Get(1), m.Len(13))
	}
}

func TestUnmarshal_Limits(t *testing.T) {
	md := msgType(t, "Node")
	deep := strings.Repeat(`{"child":`, 100) + "{}" + strings.Repeat("}", 100)
	_, err := jsoncodec.Unmarshal(md, []byte(deep))
	wantCode(t, err, protoskema.CodeDepthExceeded)
	_, err = jsoncodec.UnmarshalOptions{RecursionLimit: 200}.Unmarshal(md, []byte(deep))
	must(t, err)
	_, err = jsoncodec.UnmarshalOptions{MaxDepth: 2}.Unmarshal(md, []byte(`{"child":{"child":{}}}`))
	wantCode(t, err, protoskema.CodeDepthExceeded)
	_, err = jsoncodec.UnmarshalOptions{MaxBytes: 8}.Unmarshal(md, []byte(`{"v":1,              "child":{}}`))
	wantCode(t, err, protoskema.CodeTruncated)
}

func TestRoundTrip_BothDrivers(t *testing.T) {
	md := msgType(t, "All")
	m := dynamic.New(md)
	must(t, m.Set(2, int64(math.MinInt64)))
	must(t, m.Set(3, uint32(math.MaxUint32)))
	must(t, m.Set(6, uint64(1)<<63))
	must(t, m.Set(9, 0.1))
	must(t, m.Set(10, "héllo\n "))
	must(t, m.Set(11, []byte("bytes")))
	must(t, m.Set(19, "left"))
	acc, err := m.MutableMessage(17)
	must(t, err)
	must(t, acc.Set(1, schema.EnumNumber(9)))
	must(t, m.MapPut(15, "k", int64(-1)))

	out := marshal(t, m, jsoncodec.MarshalOptions{})
	for _, drv := range []protoskema.JSONDriver{protoskema.DefaultJSONDriver(), drvgojson.Driver()} {
		back, err := jsoncodec.UnmarshalOptions{Driver: drv, Unknown: protoskema.UnknownStrict}.Unmarshal(md, []byte(out))
		if err != nil {
			t.Fatalf("%s: %v", drv.Name(), err)
		}
		if !dynamic.Equal(m, back) {
			t.Fatalf("%s: round trip changed the message: %s", drv.Name(), out)
		}
	}
}

// TestProtojsonCompatibility checks both directions against protojson using
// the wire format as the common ground.
func TestProtojsonCompatibility(t *testing.T) {
	cat, err := schema.Resolve("j.proto", schema.MapSource{"j.proto": jsonProto})
	must(t, err)
	md, err := cat.LookupMessage("All")
	must(t, err)
	reg, err := cat.Registry()
	must(t, err)
	d, err := reg.FindDescriptorByName("j.All")
	must(t, err)
	rd := d.(protoreflect.MessageDescriptor)

	in := `{"i32":-7,"i64":"123456789012","u64":"42","s64":"-3","f64":"8","b":true,"fl":1.5,"db":-2.25,
	 "s":"text","by":"AAEC","status":"ACTIVE","nums":[3,2,1],"accounts":[{"ownerName":"x"}],
	 "counts":{"a":"1"},"byId":{"4":{"status":"ACTIVE"}},"main":{"ownerName":"m"},"opt":0,"left":"l"}`
	ours, err := jsoncodec.Unmarshal(md, []byte(in))
	must(t, err)

	ref := dynamicpb.NewMessage(rd)
	must(t, protojson.Unmarshal([]byte(in), ref))
	refBytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(ref)
	must(t, err)
	fromRef, err := wire.Unmarshal(md, refBytes)
	must(t, err)
	if !dynamic.Equal(ours, fromRef) {
		t.Fatalf("JSON decode disagrees with protojson")
	}

	out, err := jsoncodec.Marshal(ours)
	must(t, err)
	ref2 := dynamicpb.NewMessage(rd)
	must(t, protojson.Unmarshal(out, ref2))
	if !proto.Equal(ref, ref2) {
		t.Fatalf("protojson cannot read our output back: %s", out)
	}
}
