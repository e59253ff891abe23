// Package errors defines the structured error values returned by the
// compiler. All compiler failures are values of this package's Error type;
// none of them carry a source position, since the compiler is handed an
// already-parsed tree and position information is the parser's concern.
package errors

import "fmt"

// Kind names one of the compiler's fixed error categories.
type Kind string

const (
	Registers       Kind = "Registers"
	UpValues        Kind = "UpValues"
	FixedParameters Kind = "FixedParameters"
	Functions       Kind = "Functions"
	Constants       Kind = "Constants"
	OpCodes         Kind = "OpCodes"
	DuplicateLabel  Kind = "DuplicateLabel"
	GotoInvalid     Kind = "GotoInvalid"
	JumpLocal       Kind = "JumpLocal"
	JumpOverflow    Kind = "JumpOverflow"
	Unsupported     Kind = "Unsupported"
)

var messages = map[Kind]string{
	Registers:       "insufficient available registers",
	UpValues:        "too many upvalues",
	FixedParameters: "too many fixed parameters",
	Functions:       "too many inner functions",
	Constants:       "too many constants",
	OpCodes:         "too many opcodes",
	DuplicateLabel:  "label defined multiple times",
	GotoInvalid:     "goto target label not found",
	JumpLocal:       "jump into new scope of new local variable",
	JumpOverflow:    "jump offset overflow",
	Unsupported:     "construct not supported by this compiler",
}

// CompileError is implemented by every error this package produces.
type CompileError interface {
	error
	Kind() Kind
	Message() string
}

// Error is the single concrete CompileError. The failure categories are a
// flat set of fatal reasons rather than a set of distinct shapes, so one
// struct carrying a Kind (plus an optional detail string for the
// Unsupported case) is enough; there is no error type per category.
type Error struct {
	kind   Kind
	detail string
}

// New builds a structured error of the given kind.
func New(kind Kind) *Error {
	return &Error{kind: kind}
}

// WithDetail builds an error of kind k carrying an explanatory detail
// string in place of the kind's default message, e.g.
// Unsupported.WithDetail("method calls").
func (k Kind) WithDetail(detail string) *Error {
	return &Error{kind: k, detail: detail}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Message() string {
	if e.detail != "" {
		return e.detail
	}
	return messages[e.kind]
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.Message())
}
