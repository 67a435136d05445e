package benchmarks_test

import (
	"bytes"
	"strconv"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/reoring/protoskema/schema"
	"github.com/reoring/protoskema/transcode"
)

// ---- Helpers ----

const orderProto = `
syntax = "proto3";
package bench;
message Order {
  string id = 1;
  int64 total_cents = 2;
  repeated Line lines = 3;
  map<string, string> labels = 4;
  Status status = 5;
}
message Line { string sku = 1; int32 qty = 2; double price = 3; }
enum Status { PENDING = 0; PAID = 1; SHIPPED = 2; }
`

func catalog(tb testing.TB) *schema.Catalog {
	tb.Helper()
	cat, err := schema.Resolve("order.proto", schema.MapSource{"order.proto": orderProto})
	if err != nil {
		tb.Fatalf("resolve: %v", err)
	}
	return cat
}

func transcoder(tb testing.TB) *transcode.Transcoder {
	tb.Helper()
	tc, err := transcode.New(catalog(tb), "Order", transcode.Options{})
	if err != nil {
		tb.Fatalf("transcoder: %v", err)
	}
	return tc
}

// orderJSON returns an order with n lines and n labels.
func orderJSON(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"id":"o_1","totalCents":"123456","status":"PAID","lines":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"sku":"sku_` + strconv.Itoa(i) + `","qty":` + strconv.Itoa(i%7+1) + `,"price":` + strconv.Itoa(i) + `.25}`)
	}
	buf.WriteString(`],"labels":{`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"k` + strconv.Itoa(i) + `":"v` + strconv.Itoa(i) + `"`)
	}
	buf.WriteString(`}}`)
	return buf.Bytes()
}

// ---- Transcoder ----

func benchJSONToBinary(b *testing.B, n int) {
	tc := transcoder(b)
	data := orderJSON(n)
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tc.JSONToBinary(data); err != nil {
			b.Fatal(err)
		}
	}
}

func benchBinaryToJSON(b *testing.B, n int) {
	tc := transcoder(b)
	bin, err := tc.JSONToBinary(orderJSON(n))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.SetBytes(int64(len(bin)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tc.BinaryToJSON(bin); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_JSONToBinary_Small(b *testing.B) { benchJSONToBinary(b, 2) }
func Benchmark_JSONToBinary_Large(b *testing.B) { benchJSONToBinary(b, 1000) }
func Benchmark_BinaryToJSON_Small(b *testing.B) { benchBinaryToJSON(b, 2) }
func Benchmark_BinaryToJSON_Large(b *testing.B) { benchBinaryToJSON(b, 1000) }

// ---- Baseline ----

// protobuf-go decoding the same bytes into a dynamicpb message.
func Benchmark_Dynamicpb_Unmarshal_Large(b *testing.B) {
	reg, err := catalog(b).Registry()
	if err != nil {
		b.Fatal(err)
	}
	d, err := reg.FindDescriptorByName("bench.Order")
	if err != nil {
		b.Fatal(err)
	}
	md := d.(protoreflect.MessageDescriptor)
	bin, err := transcoder(b).JSONToBinary(orderJSON(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.SetBytes(int64(len(bin)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := proto.Unmarshal(bin, dynamicpb.NewMessage(md)); err != nil {
			b.Fatal(err)
		}
	}
}
