package schema

import "fmt"

// Diagnostic is one schema error with its location.
type Diagnostic struct {
	Code    string
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.File, d.Message)
}

// DiagnosticSink receives every error found while building a Catalog.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(d Diagnostic)

func (f DiagnosticFunc) Report(d Diagnostic) { f(d) }
