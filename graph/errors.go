package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of definition error. Match them with errors.Is.
var (
	ErrMalformed     = errors.New("malformed definition")
	ErrDuplicateNode = errors.New("duplicate node id")
	ErrUnknownType   = errors.New("unknown node type")
	ErrDanglingEdge  = errors.New("edge references unknown node")
	ErrInvalidEdge   = errors.New("invalid edge")
	ErrCycle         = errors.New("cycle detected")
	ErrEntryPoint    = errors.New("entry point must be exactly one node without incoming edges")
)

// DefinitionError reports which structural invariant a workflow definition violates
// and the node ids involved.
type DefinitionError struct {
	Kind   error
	Nodes  []string
	Detail string
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Nodes) > 0 {
		fmt.Fprintf(&b, " (nodes: %s)", strings.Join(e.Nodes, ", "))
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Kind }

// KindName is a stable machine-readable name for the error kind.
func (e *DefinitionError) KindName() string {
	switch e.Kind {
	case ErrMalformed:
		return "malformed"
	case ErrDuplicateNode:
		return "duplicate_node"
	case ErrUnknownType:
		return "unknown_type"
	case ErrDanglingEdge:
		return "dangling_edge"
	case ErrInvalidEdge:
		return "invalid_edge"
	case ErrCycle:
		return "cycle"
	case ErrEntryPoint:
		return "entry_point"
	}
	return "invalid"
}

func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

func defErr(kind error, detail string, nodes ...string) *DefinitionError {
	return &DefinitionError{Kind: kind, Detail: detail, Nodes: nodes}
}
