package loader

import (
	"fmt"
	"regexp"
	"strconv"
)

// ParseError represents a malformed declaration file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents a key the declaration schema does not know.
type UnknownFieldError struct {
	File    string
	Line    int
	Field   string
	Context string // enclosing construct, e.g. "alias" or "proc"
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q", e.Field)
	if e.Context != "" {
		msg += " in " + e.Context
	}
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
		}
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

// yamlLinePattern pulls the line number out of yaml.v3 error text,
// e.g. "yaml: line 4: did not find expected key".
var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func yamlError(file string, err error) *ParseError {
	pe := &ParseError{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}
