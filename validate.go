package remold

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Check adapts a boolean predicate into a Validator. A false result is
// reported as ErrInvalidField.
func Check(pred func(value any) bool) Validator {
	return func(value any) error {
		if !pred(value) {
			return fmt.Errorf("%w: %v", ErrInvalidField, value)
		}
		return nil
	}
}

var expectationCache sync.Map // map[string]cel.Program

// Expect compiles a CEL expression over the variable `value` into a
// Validator, e.g. `value > 0 && value < 130` or `value.size() <= 64`.
// The expression must produce a bool.
func Expect(expr string) (Validator, error) {
	expr = strings.TrimSpace(expr)
	program, err := compileExpectation(expr)
	if err != nil {
		return nil, err
	}
	return func(value any) error {
		out, _, err := program.Eval(map[string]any{"value": value})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidField, expr, err)
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			return fmt.Errorf("%w: expected %s", ErrInvalidField, expr)
		}
		return nil
	}, nil
}

func compileExpectation(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: expression required", ErrInvalidExpression)
	}
	if cached, ok := expectationCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q yields %s, not bool", ErrInvalidExpression, expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	expectationCache.Store(expr, program)
	return program, nil
}
