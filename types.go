package protoskema

// UnknownPolicy controls how JSON keys without a matching field are handled.
type UnknownPolicy int

const (
	UnknownStrip  UnknownPolicy = iota // Drop unknown keys (default).
	UnknownStrict                      // Reject unknown keys with an error.
)

// Strictness configures enforcement for duplicate JSON keys.
type Strictness struct {
	OnDuplicateKey Severity // Ignore (last write wins), Warn or Error.
}

// Severity expresses the severity level for issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// DefaultRecursionLimit bounds message nesting for both codecs.
const DefaultRecursionLimit = 100
