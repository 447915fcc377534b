package parser

import "fmt"

// ErrParse is the stable syntactic error code (spec.md §7: the parser
// surfaces a single GRIMOIRE_PARSE_ERROR family for anything it cannot
// recover from at a statement boundary).
const ErrParse = "GRIMOIRE_PARSE_ERROR"

// ParseError is a single parse failure with source position, grounded on
// the teacher's runtime/parser/errors.go ParseError shape.
type ParseError struct {
	Code    string
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Code, e.Line, e.Column, e.Message)
}

// Errors aggregates every ParseError collected during a Parse call.
type Errors []*ParseError

func (es Errors) Error() string {
	if len(es) == 0 {
		return ""
	}
	if len(es) == 1 {
		return es[0].Error()
	}
	msg := fmt.Sprintf("%d parse errors, first: %s", len(es), es[0].Error())
	return msg
}
