// Package protoskema transcodes between the protobuf binary wire format and
// JSON using schemas loaded at run time from .proto files.
//
// The root package keeps the shared public pieces:
//
// - A stable error model via Issues (code, JSON Pointer or file position, offset)
// - Option enums shared by the codecs (UnknownPolicy, Severity, Strictness)
// - The pluggable JSON token Source/JSONDriver SPI
//
// Everything else lives in sub-packages: schema (parse and resolve .proto
// files into a Catalog), dynamic (schema-driven messages), wire and jsoncodec
// (the two codecs), transcode (a facade binding one message type to both)
// and cmd/protoskema (the CLI).
//
// Typical usage:
//
//	cat, err := schema.Resolve("person.proto", schema.DiskSourceTree{Roots: []string{"."}})
//	tc, err := transcode.New(cat, "Person", transcode.Options{})
//	js, err := tc.BinaryToJSON(data)
//
// Import source to switch JSON tokenizing to goccy/go-json:
//
//	import _ "github.com/reoring/protoskema/source"
package protoskema
