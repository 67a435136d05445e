package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	protoskema "github.com/reoring/protoskema"
)

// Resolver builds a Catalog from a root schema file. Every error is sent to
// Sink (when set) and returned together as protoskema.Issues.
type Resolver struct {
	Sources SourceRepository
	Sink    DiagnosticSink
	// Logger receives load progress at debug level. The zero value logs
	// nothing.
	Logger zerolog.Logger
}

// Resolve builds the catalog rooted at rootPath with a default Resolver.
func Resolve(rootPath string, src SourceRepository) (*Catalog, error) {
	r := &Resolver{Sources: src, Logger: zerolog.Nop()}
	return r.Resolve(rootPath)
}

// Resolve loads rootPath and, depth first in import order, every file it
// imports, then links all type references. No catalog is returned when any
// error was found.
func (r *Resolver) Resolve(rootPath string) (*Catalog, error) {
	st := &resolveState{
		r:       r,
		files:   make(map[string]*File),
		failed:  make(map[string]bool),
		symbols: make(map[string]symbol),
	}
	st.load(rootPath, nil)
	if len(st.issues) == 0 {
		st.register()
		st.link()
	}
	if len(st.issues) == 0 {
		st.computeDefaults()
	}
	if len(st.issues) > 0 {
		r.Logger.Debug().Str("root", rootPath).Int("errors", len(st.issues)).Msg("schema resolution failed")
		return nil, st.issues
	}
	cat := &Catalog{
		root:     st.files[rootPath],
		files:    st.files,
		order:    st.order,
		messages: make(map[string]*MessageDescriptor),
		enums:    make(map[string]*EnumDescriptor),
		services: make(map[string]*ServiceDescriptor),
	}
	for name, s := range st.symbols {
		switch {
		case s.msg != nil:
			cat.messages[name] = s.msg
		case s.enum != nil:
			cat.enums[name] = s.enum
		case s.svc != nil:
			cat.services[name] = s.svc
		}
	}
	r.Logger.Debug().Str("root", rootPath).Int("files", len(st.order)).Int("messages", len(cat.messages)).Msg("catalog built")
	return cat, nil
}

type symbol struct {
	msg  *MessageDescriptor
	enum *EnumDescriptor
	svc  *ServiceDescriptor
	pkg  bool
	pos  Position
}

type resolveState struct {
	r       *Resolver
	files   map[string]*File
	order   []*File
	failed  map[string]bool
	stack   []string
	symbols map[string]symbol
	issues  protoskema.Issues
}

func (st *resolveState) report(code string, p Position, format string, args ...any) {
	st.add(protoskema.Issue{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		File:    p.File,
		Line:    p.Line,
		Column:  p.Column,
		Offset:  int64(p.Offset),
	})
}

func (st *resolveState) add(it protoskema.Issue) {
	st.issues = append(st.issues, it)
	if st.r.Sink != nil {
		st.r.Sink.Report(Diagnostic{Code: it.Code, File: it.File, Line: it.Line, Column: it.Column, Message: it.Message})
	}
}

// load visits path and its imports depth first. imp is the import statement
// that led here, nil for the root.
func (st *resolveState) load(path string, imp *Import) {
	if _, done := st.files[path]; done || st.failed[path] {
		return
	}
	for i, p := range st.stack {
		if p == path {
			cycle := append(append([]string(nil), st.stack[i:]...), path)
			st.report(protoskema.CodeCircularImport, imp.Pos, "import cycle: %s", strings.Join(cycle, " -> "))
			return
		}
	}
	at := Position{File: path}
	if imp != nil {
		at = imp.Pos
	}
	text, err := st.r.Sources.FindFile(path)
	if err != nil {
		st.failed[path] = true
		msg := fmt.Sprintf("file %q not found", path)
		if !errors.Is(err, ErrFileNotFound) {
			msg = err.Error()
		}
		st.add(protoskema.Issue{
			Code: protoskema.CodeSchemaNotFound, Message: msg, Cause: err,
			File: at.File, Line: at.Line, Column: at.Column, Offset: int64(at.Offset),
		})
		return
	}
	f, err := Parse(path, text)
	if err != nil {
		st.failed[path] = true
		iss, _ := protoskema.AsIssues(err)
		for _, it := range iss {
			st.add(it)
		}
		return
	}
	st.r.Logger.Debug().Str("file", path).Int("imports", len(f.Imports)).Msg("schema parsed")
	st.stack = append(st.stack, path)
	for i := range f.Imports {
		st.load(f.Imports[i].Path, &f.Imports[i])
	}
	st.stack = st.stack[:len(st.stack)-1]
	st.files[path] = f
	st.order = append(st.order, f)
}

// register fills the symbol table with every package, message, enum and
// service of every loaded file.
func (st *resolveState) register() {
	for _, f := range st.order {
		if f.Package != "" {
			parts := strings.Split(f.Package, ".")
			for i := range parts {
				st.define(strings.Join(parts[:i+1], "."), symbol{pkg: true, pos: Position{File: f.Path}})
			}
		}
		f.walkMessages(func(m *MessageDescriptor) { st.define(m.FullName, symbol{msg: m, pos: m.Pos}) })
		f.walkEnums(func(e *EnumDescriptor) { st.define(e.FullName, symbol{enum: e, pos: e.Pos}) })
		for _, s := range f.Services {
			st.define(s.FullName, symbol{svc: s, pos: s.Pos})
		}
	}
}

func (st *resolveState) define(name string, s symbol) {
	prev, ok := st.symbols[name]
	if !ok {
		st.symbols[name] = s
		return
	}
	if prev.pkg && s.pkg {
		return
	}
	st.report(protoskema.CodeSchemaSyntax, s.pos, "%q is already defined in file %q", name, prev.pos.File)
}

// lookup resolves a type reference the way protobuf scoping does: a leading
// dot is absolute; otherwise the first name component is searched from the
// innermost scope outward and the remainder must resolve inside it.
func (st *resolveState) lookup(scope, name string) (symbol, bool) {
	if strings.HasPrefix(name, ".") {
		s, ok := st.symbols[name[1:]]
		return s, ok
	}
	first, rest := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	for {
		cand := joinName(scope, first)
		if s, ok := st.symbols[cand]; ok {
			if rest == "" {
				return s, true
			}
			if s.msg != nil || s.pkg {
				full, ok := st.symbols[cand+rest]
				return full, ok
			}
		}
		if scope == "" {
			return symbol{}, false
		}
		if i := strings.LastIndexByte(scope, '.'); i >= 0 {
			scope = scope[:i]
		} else {
			scope = ""
		}
	}
}

func (st *resolveState) link() {
	for _, f := range st.order {
		f.walkMessages(func(m *MessageDescriptor) {
			for _, fd := range m.Fields {
				st.linkField(m.FullName, fd)
			}
			for _, fd := range m.Extensions {
				st.linkExtension(m.FullName, fd)
			}
		})
		for _, fd := range f.Extensions {
			st.linkExtension(f.Package, fd)
		}
		for _, s := range f.Services {
			for _, md := range s.Methods {
				md.Input = st.linkMessage(f.Package, md.InputName, md.Pos)
				md.Output = st.linkMessage(f.Package, md.OutputName, md.Pos)
			}
		}
	}
}

func (st *resolveState) linkField(scope string, fd *FieldDescriptor) {
	if fd.TypeName == "" || fd.Message != nil {
		return
	}
	s, ok := st.lookup(scope, fd.TypeName)
	switch {
	case !ok:
		st.report(protoskema.CodeUnresolvedType, fd.Pos, "%q is not defined", fd.TypeName)
	case s.msg != nil:
		fd.Kind, fd.Message = KindMessage, s.msg
	case s.enum != nil:
		fd.Kind, fd.Enum = KindEnum, s.enum
	default:
		st.report(protoskema.CodeUnresolvedType, fd.Pos, "%q is not a type", fd.TypeName)
	}
}

func (st *resolveState) linkExtension(scope string, fd *FieldDescriptor) {
	st.linkField(scope, fd)
	fd.ExtendeeMessage = st.linkMessage(scope, fd.Extendee, fd.Pos)
}

func (st *resolveState) linkMessage(scope, name string, p Position) *MessageDescriptor {
	s, ok := st.lookup(scope, name)
	switch {
	case !ok:
		st.report(protoskema.CodeUnresolvedType, p, "%q is not defined", name)
	case s.msg == nil:
		st.report(protoskema.CodeUnresolvedType, p, "%q is not a message type", name)
	}
	return s.msg
}

func (st *resolveState) computeDefaults() {
	for _, f := range st.order {
		f.walkMessages(func(m *MessageDescriptor) {
			for _, fd := range m.Fields {
				if fd.hasDefault {
					st.computeDefault(fd)
				}
			}
		})
	}
}

func (st *resolveState) computeDefault(fd *FieldDescriptor) {
	text, p := fd.defaultText, fd.defaultPos
	bad := func() {
		st.report(protoskema.CodeSchemaSyntax, p, "invalid default value %q for %s field %q", text, fd.Kind, fd.Name)
	}
	if (fd.Kind == KindString || fd.Kind == KindBytes) != fd.defaultQuoted {
		bad()
		return
	}
	switch fd.Kind {
	case KindInt32, KindSint32, KindSfixed32:
		n, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			bad()
			return
		}
		fd.defaultValue = int32(n)
	case KindInt64, KindSint64, KindSfixed64:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			bad()
			return
		}
		fd.defaultValue = n
	case KindUint32, KindFixed32:
		n, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			bad()
			return
		}
		fd.defaultValue = uint32(n)
	case KindUint64, KindFixed64:
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			bad()
			return
		}
		fd.defaultValue = n
	case KindFloat, KindDouble:
		v, ok := parseFloatLiteral(text)
		if !ok {
			bad()
			return
		}
		if fd.Kind == KindFloat {
			fd.defaultValue = float32(v)
		} else {
			fd.defaultValue = v
		}
	case KindBool:
		if text != "true" && text != "false" {
			bad()
			return
		}
		fd.defaultValue = text == "true"
	case KindString:
		fd.defaultValue = text
	case KindBytes:
		fd.defaultValue = []byte(text)
	case KindEnum:
		v := fd.Enum.ValueByName(text)
		if v == nil {
			st.report(protoskema.CodeSchemaSyntax, p, "enum type %q has no value named %q", fd.Enum.FullName, text)
			return
		}
		fd.defaultValue = v.Number
	default:
		st.report(protoskema.CodeSchemaSyntax, p, "messages can't have default values")
	}
}

func parseFloatLiteral(text string) (float64, bool) {
	switch strings.TrimPrefix(text, "+") {
	case "inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	case "nan", "-nan":
		return math.NaN(), true
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, true
	}
	if n, err := strconv.ParseInt(text, 0, 64); err == nil {
		return float64(n), true
	}
	return 0, false
}
