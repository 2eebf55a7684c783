package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound means no record matches the requested id or business key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means the (parent, normalized name) uniqueness constraint
	// rejected a write.
	ErrDuplicate = errors.New("duplicate name in parent scope")

	// ErrMissingParent means a write referenced a parent id that does not exist.
	ErrMissingParent = errors.New("parent record does not exist")

	// ErrInvalid means the store rejected a value outside its column domain.
	ErrInvalid = errors.New("value rejected by store constraint")
)

// Kind classifies an import error. The kind decides how far a failure spreads
// and whether the caller may retry.
type Kind int

const (
	// KindParse: the bytes do not match the declared format. Fatal for one file.
	KindParse Kind = iota + 1
	// KindValidation: a row or node failed a content rule. The row is skipped.
	KindValidation
	// KindReferential: a parent id vanished mid-run. The subtree is aborted.
	KindReferential
	// KindStore: I/O or timeout against the store. Retryable by the caller.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindValidation:
		return "ValidationError"
	case KindReferential:
		return "ReferentialError"
	case KindStore:
		return "StoreError"
	default:
		return "Error"
	}
}

// Error is the structured error carried through every import stage.
type Error struct {
	Kind   Kind
	Stage  string // pipeline stage that produced the error
	Level  Level  // hierarchy level of the failing node, if any
	Name   string // entity name
	Parent string // parent entity name
	File   string // source file, if known
	Line   int    // 1-based source line, 0 if not row-specific
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Stage != "" {
		fmt.Fprintf(&b, " [%s]", e.Stage)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " %s", e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	} else if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Level != "" {
		fmt.Fprintf(&b, " %s %q", e.Level, e.Name)
		if e.Parent != "" {
			fmt.Fprintf(&b, " under %q", e.Parent)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindStore }

// NewParseError wraps a decoding failure for one file.
func NewParseError(file string, err error) *Error {
	return &Error{Kind: KindParse, Stage: "parsing", File: file, Err: err}
}

// NewValidationError reports a rejected row or node.
func NewValidationError(level Level, name string, line int, format string, args ...any) *Error {
	return &Error{
		Kind:  KindValidation,
		Stage: "mapping",
		Level: level,
		Name:  name,
		Line:  line,
		Err:   fmt.Errorf(format, args...),
	}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

// IsRetryable reports whether err is a retryable store error.
func IsRetryable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Retryable()
}
