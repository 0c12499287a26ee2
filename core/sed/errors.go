package sed

import (
	"fmt"
)

// ScriptSyntaxError is returned when script text can't be compiled.
type ScriptSyntaxError struct {
	// Line is the 1-based line of the script the error was found on.
	Line int
	// Reason is a short human readable description.
	Reason string
}

func (e *ScriptSyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// UndefinedLabelError is returned when a branch names a label that the
// script never declares.
type UndefinedLabelError struct {
	Label string
	Line  int
}

func (e *UndefinedLabelError) Error() string {
	return fmt.Sprintf("line %d: can't find label for jump to `%s'", e.Line, e.Label)
}

// RegexError is returned when a pattern is rejected by the regular
// expression engine.
type RegexError struct {
	Line    int
	Pattern string
	Err     error
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("line %d: invalid regular expression %q: %v", e.Line, e.Pattern, e.Err)
}

func (e *RegexError) Unwrap() error {
	return e.Err
}

// IOError is returned when reading input or writing a side file fails.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func syntaxErrorf(line int, format string, a ...interface{}) error {
	return &ScriptSyntaxError{Line: line, Reason: fmt.Sprintf(format, a...)}
}
