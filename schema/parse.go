package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	protoskema "github.com/reoring/protoskema"
)

const (
	maxFieldNumber      = 536870911
	firstReservedNumber = 19000
	lastReservedNumber  = 19999
	defaultSyntax       = "proto2"
	syntaxProto3        = "proto3"
)

var mapKeyKinds = map[Kind]bool{
	KindInt32: true, KindInt64: true, KindUint32: true, KindUint64: true,
	KindSint32: true, KindSint64: true, KindFixed32: true, KindFixed64: true,
	KindSfixed32: true, KindSfixed64: true, KindBool: true, KindString: true,
}

// Parse parses the text of one schema file. path is the logical path used in
// positions and as File.Path. Type references are left unresolved; Resolve
// links them across files. Errors are protoskema.Issues with code
// schema_syntax.
func Parse(path string, text []byte) (*File, error) {
	ast, err := protoParser.ParseBytes(path, text)
	if err != nil {
		return nil, grammarIssue(path, err)
	}
	b := &fileBuilder{file: &File{Path: path, Syntax: defaultSyntax}}
	b.build(ast)
	if len(b.issues) > 0 {
		return nil, b.issues
	}
	return b.file, nil
}

func grammarIssue(path string, err error) protoskema.Issues {
	it := protoskema.Issue{Code: protoskema.CodeSchemaSyntax, File: path, Message: err.Error(), Offset: -1, Cause: err}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		it.Message = perr.Message()
		it.Line, it.Column, it.Offset = pos.Line, pos.Column, int64(pos.Offset)
	}
	return protoskema.Issues{it}
}

type fileBuilder struct {
	file   *File
	issues protoskema.Issues
}

func (b *fileBuilder) pos(p lexer.Position) Position {
	return Position{File: b.file.Path, Line: p.Line, Column: p.Column, Offset: p.Offset}
}

func (b *fileBuilder) errorf(p Position, format string, args ...any) {
	b.issues = append(b.issues, protoskema.Issue{
		Code:    protoskema.CodeSchemaSyntax,
		Message: fmt.Sprintf(format, args...),
		File:    p.File,
		Line:    p.Line,
		Column:  p.Column,
		Offset:  int64(p.Offset),
	})
}

func (b *fileBuilder) proto3() bool { return b.file.Syntax == syntaxProto3 }

func (b *fileBuilder) build(ast *protoFile) {
	f := b.file
	sawDecl, sawPackage := false, false
	for _, e := range ast.Entries {
		p := b.pos(e.Pos)
		switch {
		case e.Syntax != nil:
			if sawDecl {
				b.errorf(p, "syntax must be the first statement of the file")
				continue
			}
			sawDecl = true
			if e.Syntax.Keyword == "edition" {
				b.errorf(p, "editions are not supported")
				continue
			}
			v, err := unquote(e.Syntax.Value)
			if err != nil || (v != "proto2" && v != "proto3") {
				b.errorf(p, "unrecognized syntax %s", e.Syntax.Value)
				continue
			}
			f.Syntax = v
		case e.Package != nil:
			sawDecl = true
			if sawPackage {
				b.errorf(p, "multiple package definitions")
				continue
			}
			sawPackage = true
			f.Package = e.Package.Name
		case e.Import != nil:
			sawDecl = true
			path, err := unquote(e.Import.Path)
			if err != nil {
				b.errorf(p, "%v", err)
				continue
			}
			f.Imports = append(f.Imports, Import{
				Path:   path,
				Public: e.Import.Modifier == "public",
				Weak:   e.Import.Modifier == "weak",
				Pos:    p,
			})
		case e.Option != nil:
			sawDecl = true
			text, _, err := e.Option.Value.text()
			if err != nil {
				b.errorf(p, "%v", err)
				continue
			}
			f.Options = append(f.Options, Option{Name: e.Option.Name, Value: text})
		case e.Message != nil:
			sawDecl = true
			f.Messages = append(f.Messages, b.message(nil, f.Package, e.Message))
		case e.Enum != nil:
			sawDecl = true
			f.Enums = append(f.Enums, b.enum(nil, f.Package, e.Enum))
		case e.Service != nil:
			sawDecl = true
			f.Services = append(f.Services, b.service(e.Service))
		case e.Extend != nil:
			sawDecl = true
			f.Extensions = append(f.Extensions, b.extend(f.Package, e.Extend)...)
		}
	}
}

func (b *fileBuilder) message(parent *MessageDescriptor, scope string, pm *protoMessage) *MessageDescriptor {
	md := &MessageDescriptor{
		Name:     pm.Name,
		FullName: joinName(scope, pm.Name),
		File:     b.file,
		Parent:   parent,
		Pos:      b.pos(pm.Pos),
	}
	for _, e := range pm.Entries {
		switch {
		case e.Message != nil:
			md.Messages = append(md.Messages, b.message(md, md.FullName, e.Message))
		case e.Enum != nil:
			md.Enums = append(md.Enums, b.enum(md, md.FullName, e.Enum))
		case e.Extend != nil:
			md.Extensions = append(md.Extensions, b.extend(md.FullName, e.Extend)...)
		case e.Oneof != nil:
			od := &OneofDescriptor{Name: e.Oneof.Name, Parent: md, Pos: b.pos(e.Oneof.Pos)}
			for _, oe := range e.Oneof.Entries {
				if oe.Group != nil {
					b.errorf(b.pos(oe.Group.Pos), "group fields are not supported; use a message field")
				}
				if oe.Field == nil {
					continue
				}
				if oe.Field.Label != "" {
					b.errorf(b.pos(oe.Field.Pos), "fields in oneofs must not have labels (required / optional / repeated)")
				}
				fd := b.field(md, oe.Field)
				fd.Oneof = od
				fd.Proto3Optional = false
				od.Fields = append(od.Fields, fd)
				md.Fields = append(md.Fields, fd)
			}
			if len(od.Fields) == 0 {
				b.errorf(od.Pos, "oneof %q must have at least one field", od.Name)
			}
			md.Oneofs = append(md.Oneofs, od)
		case e.Map != nil:
			fd, entry := b.mapField(md, e.Map)
			md.Fields = append(md.Fields, fd)
			md.Messages = append(md.Messages, entry)
		case e.Reserved != nil:
			md.ReservedRanges = append(md.ReservedRanges, b.ranges(e.Reserved.Ranges)...)
			md.ReservedNames = append(md.ReservedNames, b.names(e.Reserved)...)
		case e.Extensions != nil:
			md.ExtensionRanges = append(md.ExtensionRanges, b.ranges(e.Extensions.Ranges)...)
		case e.Group != nil:
			b.errorf(b.pos(e.Group.Pos), "group fields are not supported; use a message field")
		case e.Field != nil:
			md.Fields = append(md.Fields, b.field(md, e.Field))
		}
	}
	b.checkMessage(md)
	md.index()
	return md
}

func (b *fileBuilder) field(md *MessageDescriptor, pf *protoField) *FieldDescriptor {
	p := b.pos(pf.Pos)
	fd := &FieldDescriptor{
		Name:   pf.Name,
		Parent: md,
		File:   b.file,
		Pos:    p,
		Number: b.number(p, pf.Number),
	}
	if md != nil {
		fd.FullName = md.FullName + "." + pf.Name
	}
	switch pf.Label {
	case "repeated":
		fd.Label = LabelRepeated
	case "required":
		if b.proto3() {
			b.errorf(p, "required fields are not allowed in proto3")
		}
		fd.Required = true
	case "optional":
		fd.Proto3Optional = b.proto3()
	}
	if k, ok := scalarKinds[pf.Type]; ok {
		fd.Kind = k
	} else {
		fd.TypeName = pf.Type
	}
	b.fieldOptions(fd, pf.Options)
	if !fd.explicitJSONName {
		fd.JSONName = jsonName(fd.Name)
	}
	return fd
}

func (b *fileBuilder) fieldOptions(fd *FieldDescriptor, opts []*protoOption) {
	for _, o := range opts {
		p := b.pos(o.Pos)
		text, quoted, err := o.Value.text()
		if err != nil {
			b.errorf(p, "%v", err)
			continue
		}
		switch o.Name {
		case "default":
			switch {
			case b.proto3():
				b.errorf(p, "explicit default values are not allowed in proto3")
			case fd.Label != LabelSingular:
				b.errorf(p, "repeated fields can't have default values")
			case fd.hasDefault:
				b.errorf(p, "option default was already set")
			default:
				fd.hasDefault = true
				fd.defaultText = text
				fd.defaultQuoted = quoted
				fd.defaultPos = p
			}
		case "json_name":
			if !quoted {
				b.errorf(p, "json_name must be a string")
				continue
			}
			fd.JSONName = text
			fd.explicitJSONName = true
		case "packed":
			if text != "true" && text != "false" {
				b.errorf(p, "packed must be true or false")
				continue
			}
			v := text == "true"
			fd.Packed = &v
		}
	}
}

func (b *fileBuilder) mapField(md *MessageDescriptor, pm *protoMapField) (*FieldDescriptor, *MessageDescriptor) {
	p := b.pos(pm.Pos)
	keyKind, ok := scalarKinds[pm.Key]
	if !ok || !mapKeyKinds[keyKind] {
		b.errorf(p, "invalid map key type %q", pm.Key)
	}
	entry := &MessageDescriptor{
		Name:     mapEntryName(pm.Name),
		File:     b.file,
		Parent:   md,
		MapEntry: true,
		Pos:      p,
	}
	entry.FullName = md.FullName + "." + entry.Name
	key := &FieldDescriptor{
		Name: "key", JSONName: "key", FullName: entry.FullName + ".key",
		Number: 1, Kind: keyKind, Parent: entry, File: b.file, Pos: p,
	}
	val := &FieldDescriptor{
		Name: "value", JSONName: "value", FullName: entry.FullName + ".value",
		Number: 2, Parent: entry, File: b.file, Pos: p,
	}
	if k, ok := scalarKinds[pm.Value]; ok {
		val.Kind = k
	} else {
		val.TypeName = pm.Value
	}
	entry.Fields = []*FieldDescriptor{key, val}
	entry.index()

	fd := &FieldDescriptor{
		Name:     pm.Name,
		FullName: md.FullName + "." + pm.Name,
		Number:   b.number(p, pm.Number),
		Kind:     KindMessage,
		Label:    LabelMap,
		TypeName: entry.FullName,
		Message:  entry,
		MapKey:   key,
		MapValue: val,
		Parent:   md,
		File:     b.file,
		Pos:      p,
	}
	for _, o := range pm.Options {
		if o.Name == "default" {
			b.errorf(b.pos(o.Pos), "map fields can't have default values")
			continue
		}
		b.fieldOptions(fd, []*protoOption{o})
	}
	if !fd.explicitJSONName {
		fd.JSONName = jsonName(fd.Name)
	}
	return fd, entry
}

func (b *fileBuilder) number(p Position, lit string) int32 {
	n, err := strconv.ParseInt(lit, 0, 64)
	if err != nil || n < 1 || n > maxFieldNumber {
		b.errorf(p, "field number %s out of range 1 to %d", lit, maxFieldNumber)
		return 0
	}
	if n >= firstReservedNumber && n <= lastReservedNumber {
		b.errorf(p, "field numbers %d to %d are reserved for the protobuf implementation", firstReservedNumber, lastReservedNumber)
	}
	return int32(n)
}

func (b *fileBuilder) ranges(rs []*protoRange) []Range {
	out := make([]Range, 0, len(rs))
	for _, r := range rs {
		p := b.pos(r.Pos)
		start, err := strconv.ParseInt(r.Start, 0, 32)
		if err != nil {
			b.errorf(p, "invalid range start %s", r.Start)
			continue
		}
		end := start
		switch r.End {
		case "":
		case "max":
			end = maxFieldNumber
		default:
			if end, err = strconv.ParseInt(r.End, 0, 32); err != nil || end < start {
				b.errorf(p, "invalid range %s to %s", r.Start, r.End)
				continue
			}
		}
		out = append(out, Range{Start: int32(start), End: int32(end)})
	}
	return out
}

func (b *fileBuilder) names(r *protoReserved) []string {
	out := make([]string, 0, len(r.Names))
	for _, n := range r.Names {
		s, err := unquote(n)
		if err != nil {
			b.errorf(b.pos(r.Pos), "%v", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (b *fileBuilder) checkMessage(md *MessageDescriptor) {
	byNumber := make(map[int32]*FieldDescriptor, len(md.Fields))
	byName := make(map[string]bool, len(md.Fields))
	for _, fd := range md.Fields {
		if fd.Number != 0 {
			if prev, dup := byNumber[fd.Number]; dup {
				b.errorf(fd.Pos, "field number %d has already been used in %q by field %q", fd.Number, md.FullName, prev.Name)
			} else {
				byNumber[fd.Number] = fd
			}
			for _, r := range md.ReservedRanges {
				if r.Contains(fd.Number) {
					b.errorf(fd.Pos, "field %q uses reserved number %d", fd.Name, fd.Number)
				}
			}
			for _, r := range md.ExtensionRanges {
				if r.Contains(fd.Number) {
					b.errorf(fd.Pos, "extension range %d to %d includes field %q (%d)", r.Start, r.End, fd.Name, fd.Number)
				}
			}
		}
		if byName[fd.Name] {
			b.errorf(fd.Pos, "%q is already defined in %q", fd.Name, md.FullName)
		}
		byName[fd.Name] = true
		for _, rn := range md.ReservedNames {
			if rn == fd.Name {
				b.errorf(fd.Pos, "field name %q is reserved", fd.Name)
			}
		}
	}
}

func (b *fileBuilder) enum(parent *MessageDescriptor, scope string, pe *protoEnum) *EnumDescriptor {
	ed := &EnumDescriptor{
		Name:     pe.Name,
		FullName: joinName(scope, pe.Name),
		File:     b.file,
		Parent:   parent,
		Pos:      b.pos(pe.Pos),
	}
	seen := make(map[string]bool)
	for _, e := range pe.Entries {
		switch {
		case e.Option != nil:
			if e.Option.Name == "allow_alias" {
				text, _, _ := e.Option.Value.text()
				ed.AllowAlias = text == "true"
			}
		case e.Reserved != nil:
			ed.ReservedRanges = append(ed.ReservedRanges, b.ranges(e.Reserved.Ranges)...)
			ed.ReservedNames = append(ed.ReservedNames, b.names(e.Reserved)...)
		case e.Value != nil:
			p := b.pos(e.Value.Pos)
			n, err := strconv.ParseInt(e.Value.Number, 0, 32)
			if err != nil {
				b.errorf(p, "enum value %s out of range", e.Value.Number)
			}
			if seen[e.Value.Name] {
				b.errorf(p, "%q is already defined in %q", e.Value.Name, ed.FullName)
			}
			seen[e.Value.Name] = true
			ed.Values = append(ed.Values, &EnumValueDescriptor{Name: e.Value.Name, Number: EnumNumber(n), Pos: p})
		}
	}
	switch {
	case len(ed.Values) == 0:
		b.errorf(ed.Pos, "enum %q must contain at least one value", ed.Name)
	case b.proto3() && ed.Values[0].Number != 0:
		b.errorf(ed.Values[0].Pos, "the first enum value must be zero in proto3")
	}
	for _, v := range ed.Values {
		for _, r := range ed.ReservedRanges {
			if r.Contains(int32(v.Number)) {
				b.errorf(v.Pos, "enum value %q uses reserved number %d", v.Name, v.Number)
			}
		}
		for _, rn := range ed.ReservedNames {
			if rn == v.Name {
				b.errorf(v.Pos, "enum value name %q is reserved", v.Name)
			}
		}
	}
	ed.index()
	return ed
}

func (b *fileBuilder) service(ps *protoService) *ServiceDescriptor {
	sd := &ServiceDescriptor{
		Name:     ps.Name,
		FullName: joinName(b.file.Package, ps.Name),
		File:     b.file,
		Pos:      b.pos(ps.Pos),
	}
	for _, e := range ps.Entries {
		if e.Method == nil {
			continue
		}
		sd.Methods = append(sd.Methods, &MethodDescriptor{
			Name:            e.Method.Name,
			InputName:       e.Method.Input,
			OutputName:      e.Method.Output,
			ClientStreaming: e.Method.ClientStreaming,
			ServerStreaming: e.Method.ServerStreaming,
			Pos:             b.pos(e.Method.Pos),
		})
	}
	return sd
}

func (b *fileBuilder) extend(scope string, pe *protoExtend) []*FieldDescriptor {
	out := make([]*FieldDescriptor, 0, len(pe.Fields))
	for _, pf := range pe.Fields {
		fd := b.field(nil, pf)
		fd.FullName = joinName(scope, pf.Name)
		fd.Extendee = pe.Extendee
		fd.Proto3Optional = false
		out = append(out, fd)
	}
	return out
}

// text renders an option value. quoted reports a string literal.
func (v *protoValue) text() (string, bool, error) {
	switch {
	case len(v.Strings) > 0:
		var sb strings.Builder
		for _, lit := range v.Strings {
			s, err := unquote(lit)
			if err != nil {
				return "", false, err
			}
			sb.WriteString(s)
		}
		return sb.String(), true, nil
	case v.Number != nil:
		return *v.Number, false, nil
	case v.Ident != nil:
		return *v.Ident, false, nil
	}
	return "", false, nil
}
