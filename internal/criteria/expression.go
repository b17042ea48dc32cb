package criteria

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"mqproxy/pkg/models"
)

// Expression compiles a CEL predicate over the message and returns it as a
// SendCriteria. Available variables:
//
//	id          string
//	destination string
//	priority    int
//	body        string
//	properties  map[string]dyn
//
// The expression must produce a bool. Evaluation errors block the message.
func Expression(expr string) (SendCriteria, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("destination", cel.StringType),
		cel.Variable("priority", cel.IntType),
		cel.Variable("body", cel.StringType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("criteria expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return Func(func(msg *models.Message) bool {
		props := msg.Properties
		if props == nil {
			props = map[string]any{}
		}
		result, _, err := program.Eval(map[string]any{
			"id":          msg.ID,
			"destination": msg.Destination,
			"priority":    msg.Priority,
			"body":        msg.Body,
			"properties":  props,
		})
		if err != nil {
			return false
		}
		passed, ok := result.Value().(bool)
		return ok && passed
	}), nil
}
