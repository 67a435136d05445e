package schema

import (
	"math"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FileDescriptorProtos converts the catalog to descriptor protos,
// dependencies first.
func (c *Catalog) FileDescriptorProtos() []*descriptorpb.FileDescriptorProto {
	out := make([]*descriptorpb.FileDescriptorProto, 0, len(c.order))
	for _, f := range c.order {
		out = append(out, fileProto(f))
	}
	return out
}

// FileDescriptorSet wraps FileDescriptorProtos in a set.
func (c *Catalog) FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: c.FileDescriptorProtos()}
}

// Registry builds a protobuf-go file registry from the catalog.
func (c *Catalog) Registry() (*protoregistry.Files, error) {
	return protodesc.NewFiles(c.FileDescriptorSet())
}

// DescriptorProto converts a single file.
func (f *File) DescriptorProto() *descriptorpb.FileDescriptorProto { return fileProto(f) }

// DescriptorProto converts a single message, nested types included.
func (m *MessageDescriptor) DescriptorProto() *descriptorpb.DescriptorProto { return messageProto(m) }

func fileProto(f *File) *descriptorpb.FileDescriptorProto {
	fp := &descriptorpb.FileDescriptorProto{Name: proto.String(f.Path)}
	if f.Package != "" {
		fp.Package = proto.String(f.Package)
	}
	if f.Syntax == syntaxProto3 {
		fp.Syntax = proto.String(syntaxProto3)
	}
	for i, imp := range f.Imports {
		fp.Dependency = append(fp.Dependency, imp.Path)
		if imp.Public {
			fp.PublicDependency = append(fp.PublicDependency, int32(i))
		}
		if imp.Weak {
			fp.WeakDependency = append(fp.WeakDependency, int32(i))
		}
	}
	if v, ok := f.Option("go_package"); ok {
		fp.Options = &descriptorpb.FileOptions{GoPackage: proto.String(v)}
	}
	for _, m := range f.Messages {
		fp.MessageType = append(fp.MessageType, messageProto(m))
	}
	for _, e := range f.Enums {
		fp.EnumType = append(fp.EnumType, enumProto(e))
	}
	for _, s := range f.Services {
		fp.Service = append(fp.Service, serviceProto(s))
	}
	for _, x := range f.Extensions {
		fp.Extension = append(fp.Extension, fieldProto(x))
	}
	return fp
}

func messageProto(m *MessageDescriptor) *descriptorpb.DescriptorProto {
	mp := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}
	if m.MapEntry {
		mp.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	}
	oneofIndex := make(map[*OneofDescriptor]int32, len(m.Oneofs))
	taken := make(map[string]bool)
	for i, o := range m.Oneofs {
		oneofIndex[o] = int32(i)
		taken[o.Name] = true
		mp.OneofDecl = append(mp.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o.Name)})
	}
	for _, fd := range m.Fields {
		taken[fd.Name] = true
	}
	for _, fd := range m.Fields {
		fp := fieldProto(fd)
		switch {
		case fd.Oneof != nil:
			fp.OneofIndex = proto.Int32(oneofIndex[fd.Oneof])
		case fd.Proto3Optional:
			name := "_" + fd.Name
			for taken[name] {
				name = "X" + name
			}
			taken[name] = true
			fp.OneofIndex = proto.Int32(int32(len(mp.OneofDecl)))
			mp.OneofDecl = append(mp.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(name)})
		}
		mp.Field = append(mp.Field, fp)
	}
	for _, n := range m.Messages {
		mp.NestedType = append(mp.NestedType, messageProto(n))
	}
	for _, e := range m.Enums {
		mp.EnumType = append(mp.EnumType, enumProto(e))
	}
	for _, x := range m.Extensions {
		mp.Extension = append(mp.Extension, fieldProto(x))
	}
	for _, r := range m.ReservedRanges {
		mp.ReservedRange = append(mp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(r.Start), End: proto.Int32(exclusiveEnd(r.End)),
		})
	}
	mp.ReservedName = append(mp.ReservedName, m.ReservedNames...)
	for _, r := range m.ExtensionRanges {
		mp.ExtensionRange = append(mp.ExtensionRange, &descriptorpb.DescriptorProto_ExtensionRange{
			Start: proto.Int32(r.Start), End: proto.Int32(exclusiveEnd(r.End)),
		})
	}
	return mp
}

func exclusiveEnd(end int32) int32 {
	if end == math.MaxInt32 {
		return end
	}
	return end + 1
}

func fieldProto(fd *FieldDescriptor) *descriptorpb.FieldDescriptorProto {
	fp := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(fd.Name),
		Number:   proto.Int32(fd.Number),
		JsonName: proto.String(fd.JSONName),
		Type:     descriptorpb.FieldDescriptorProto_Type(fd.Kind).Enum(),
	}
	switch {
	case fd.Label != LabelSingular:
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	case fd.Required:
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	default:
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	}
	switch {
	case fd.Message != nil:
		fp.TypeName = proto.String("." + fd.Message.FullName)
	case fd.Enum != nil:
		fp.TypeName = proto.String("." + fd.Enum.FullName)
	}
	if fd.ExtendeeMessage != nil {
		fp.Extendee = proto.String("." + fd.ExtendeeMessage.FullName)
	}
	if fd.Proto3Optional {
		fp.Proto3Optional = proto.Bool(true)
	}
	if fd.Packed != nil {
		fp.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(*fd.Packed)}
	}
	if fd.hasDefault && fd.defaultValue != nil {
		fp.DefaultValue = proto.String(defaultString(fd))
	}
	return fp
}

// defaultString renders a default the way descriptor.proto expects it.
func defaultString(fd *FieldDescriptor) string {
	switch v := fd.defaultValue.(type) {
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return floatDefault(float64(v), 32)
	case float64:
		return floatDefault(v, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case []byte:
		return cEscape(v)
	case EnumNumber:
		if ev := fd.Enum.ValueByNumber(v); ev != nil {
			return ev.Name
		}
	}
	return fd.defaultText
}

func floatDefault(v float64, bits int) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}

func cEscape(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c == '\\' || c == '"' || c == '\'':
			out = append(out, '\\', c)
		case c >= 0x20 && c < 0x7f:
			out = append(out, c)
		default:
			out = append(out, '\\', '0'+(c>>6), '0'+((c>>3)&7), '0'+(c&7))
		}
	}
	return string(out)
}

func enumProto(e *EnumDescriptor) *descriptorpb.EnumDescriptorProto {
	ep := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	seen := make(map[EnumNumber]bool, len(e.Values))
	alias := e.AllowAlias
	for _, v := range e.Values {
		if seen[v.Number] {
			alias = true
		}
		seen[v.Number] = true
		ep.Value = append(ep.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(int32(v.Number)),
		})
	}
	if alias {
		ep.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	for _, r := range e.ReservedRanges {
		ep.ReservedRange = append(ep.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
			Start: proto.Int32(r.Start), End: proto.Int32(r.End),
		})
	}
	ep.ReservedName = append(ep.ReservedName, e.ReservedNames...)
	return ep
}

func serviceProto(s *ServiceDescriptor) *descriptorpb.ServiceDescriptorProto {
	sp := &descriptorpb.ServiceDescriptorProto{Name: proto.String(s.Name)}
	for _, m := range s.Methods {
		mp := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String("." + m.Input.FullName),
			OutputType: proto.String("." + m.Output.FullName),
		}
		if m.ClientStreaming {
			mp.ClientStreaming = proto.Bool(true)
		}
		if m.ServerStreaming {
			mp.ServerStreaming = proto.Bool(true)
		}
		sp.Method = append(sp.Method, mp)
	}
	return sp
}
