package protoskema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/protoskema/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Schema build phase
	CodeSchemaNotFound = "schema_not_found"
	CodeSchemaSyntax   = "schema_syntax"
	CodeCircularImport = "circular_import"
	CodeUnresolvedType = "unresolved_type"
	// Dynamic message model
	CodeTypeMismatch = "type_mismatch"
	CodeUnknownField = "unknown_field"
	// Binary wire decode
	CodeTruncated     = "truncated"
	CodeInvalidVarint = "invalid_varint"
	CodeInvalidTag    = "invalid_tag"
	CodeDepthExceeded = "depth_exceeded"
	// JSON decode/encode
	CodeJSONSyntax   = "json_syntax"
	CodeInvalidUTF8  = "invalid_utf8"
	CodeOverflow     = "overflow"
	CodeInvalidEnum  = "invalid_enum"
	CodeUnknownKey   = "unknown_key"
	CodeDuplicateKey = "duplicate_key"
)

// Sentinel errors, one per issue code. Issue and Issues unwrap to them so
// callers can use errors.Is without inspecting codes.
var (
	ErrSchemaNotFound = errors.New("protoskema: schema not found")
	ErrSchemaSyntax   = errors.New("protoskema: schema syntax error")
	ErrCircularImport = errors.New("protoskema: circular import")
	ErrUnresolvedType = errors.New("protoskema: unresolved type")
	ErrTypeMismatch   = errors.New("protoskema: type mismatch")
	ErrUnknownField   = errors.New("protoskema: unknown field")
	ErrTruncatedInput = errors.New("protoskema: truncated input")
	ErrInvalidVarint  = errors.New("protoskema: invalid varint")
	ErrInvalidTag     = errors.New("protoskema: invalid tag")
	ErrDepthExceeded  = errors.New("protoskema: depth exceeded")
	ErrJSONSyntax     = errors.New("protoskema: json syntax error")
	ErrInvalidUTF8    = errors.New("protoskema: invalid utf-8")
	ErrOverflow       = errors.New("protoskema: value out of range")
	ErrInvalidEnum    = errors.New("protoskema: invalid enum value")
	ErrUnknownKey     = errors.New("protoskema: unknown key")
	ErrDuplicateKey   = errors.New("protoskema: duplicate key")
)

var sentinelByCode = map[string]error{
	CodeSchemaNotFound: ErrSchemaNotFound,
	CodeSchemaSyntax:   ErrSchemaSyntax,
	CodeCircularImport: ErrCircularImport,
	CodeUnresolvedType: ErrUnresolvedType,
	CodeTypeMismatch:   ErrTypeMismatch,
	CodeUnknownField:   ErrUnknownField,
	CodeTruncated:      ErrTruncatedInput,
	CodeInvalidVarint:  ErrInvalidVarint,
	CodeInvalidTag:     ErrInvalidTag,
	CodeDepthExceeded:  ErrDepthExceeded,
	CodeJSONSyntax:     ErrJSONSyntax,
	CodeInvalidUTF8:    ErrInvalidUTF8,
	CodeOverflow:       ErrOverflow,
	CodeInvalidEnum:    ErrInvalidEnum,
	CodeUnknownKey:     ErrUnknownKey,
	CodeDuplicateKey:   ErrDuplicateKey,
}

// Issue represents a single error entry.
type Issue struct {
	Code    string // One of the codes listed above.
	Message string
	// Path locates the issue inside a message: a JSON Pointer for JSON input
	// (for example: /items/2/price) or a dotted field path for wire input.
	Path string
	// File, Line and Column locate schema issues (Line is 1-based, 0 when unknown).
	File   string
	Line   int
	Column int
	Offset int64 // Byte offset in the input (-1 when unknown).
	Cause  error // Optional: underlying error.
}

// Error renders the issue as "file:line:col: message" for schema issues and
// "message at path (offset N)" otherwise.
func (it Issue) Error() string {
	msg := it.Message
	if msg == "" {
		msg = i18n.T(it.Code, nil)
	}
	b := &strings.Builder{}
	if it.File != "" {
		b.WriteString(it.File)
		if it.Line > 0 {
			fmt.Fprintf(b, ":%d:%d", it.Line, it.Column)
		}
		b.WriteString(": ")
	}
	b.WriteString(msg)
	if it.Path != "" {
		fmt.Fprintf(b, " at %s", it.Path)
	}
	if it.File == "" && it.Offset >= 0 {
		fmt.Fprintf(b, " (offset %d)", it.Offset)
	}
	return b.String()
}

// Unwrap exposes both the code sentinel and the cause.
func (it Issue) Unwrap() []error {
	var errs []error
	if s, ok := sentinelByCode[it.Code]; ok {
		errs = append(errs, s)
	}
	if it.Cause != nil {
		errs = append(errs, it.Cause)
	}
	return errs
}

// Issues is a collection of issues that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(iss[i].Error())
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Unwrap lets errors.Is and errors.As see every contained issue.
func (iss Issues) Unwrap() []error {
	errs := make([]error, len(iss))
	for i := range iss {
		errs[i] = iss[i]
	}
	return errs
}

// HasCode reports whether any issue carries the given code.
func (iss Issues) HasCode(code string) bool {
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally. A bare
// Issue is promoted to a single-element Issues.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var it Issue
	if errors.As(err, &it) {
		return Issues{it}, true
	}
	return nil, false
}

// NewIssue builds a single-issue error with a message formatted from format
// and args. An empty format falls back to the localized message for code.
func NewIssue(code string, offset int64, format string, args ...any) Issues {
	msg := i18n.T(code, nil)
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return Issues{{Code: code, Message: msg, Offset: offset}}
}
