package query

import "fmt"

type ValidationCode byte

const (
	OutOfOrderClause ValidationCode = iota + 1
	UnknownColumn
	DuplicateJoin
)

func (c ValidationCode) String() string {
	switch c {
	case OutOfOrderClause:
		return "out-of-order clause"
	case UnknownColumn:
		return "unknown column"
	case DuplicateJoin:
		return "duplicate join"
	default:
		return "invalid query"
	}
}

// ValidationError reports a structurally or referentially invalid query.
// Line is the zero-based position of the offending QueryLine; Subject names
// the offending column or table where one applies.
type ValidationError struct {
	Code    ValidationCode
	Line    int
	Subject string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Code)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Subject)
}

// PlanError reports a defect in plan construction. DependencyCycle is a
// defensive invariant check; it is unreachable for validated queries.
type PlanError struct {
	Msg string
}

func (e *PlanError) Error() string {
	return "plan: " + e.Msg
}

func dependencyCycle(node int) *PlanError {
	return &PlanError{Msg: fmt.Sprintf("dependency cycle at node %d", node)}
}
