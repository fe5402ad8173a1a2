package expression

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyExpression    = errors.New("empty expression")
	ErrUnknownVariable    = errors.New("unknown variable")
	ErrUnknownNode        = errors.New("unknown node")
	ErrNodeNotVisible     = errors.New("node output is not available yet")
	ErrCurrentNodeMissing = errors.New("current node not found in workflow")
)

// ExpressionError is returned when a {{ }} reference expression fails to compile or evaluate.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Expression, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// FormulaError is returned when an = formula fails, typically on an undefined identifier.
type FormulaError struct {
	Formula string
	Err     error
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula %q: %v", e.Formula, e.Err)
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}
