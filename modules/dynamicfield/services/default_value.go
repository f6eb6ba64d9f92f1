package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

var newDefaultValueCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("field", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now", cel.TimestampType),
		cel.Variable("today", cel.StringType),
	)
}

var newDefaultValueCELProgram = func(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(ast)
}

var defaultValueProgramCache sync.Map

func loadOrCompileDefaultValueProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := defaultValueProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newDefaultValueCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.StringType {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := newDefaultValueCELProgram(env, ast)
	if err != nil {
		return nil, err
	}
	defaultValueProgramCache.Store(expr, program)
	return program, nil
}

// evalDefaultValueExpr evaluates a string expression over the field
// definition and the current time.
func evalDefaultValueExpr(expr string, cfg types.Config, now time.Time) (string, error) {
	program, err := loadOrCompileDefaultValueProgram(expr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDefaultValueExpr, err)
	}
	out, _, err := program.Eval(map[string]any{
		"field": map[string]string{
			"name":        cfg.Name,
			"label":       cfg.Label,
			"field_type":  string(cfg.FieldType),
			"object_type": cfg.ObjectType,
		},
		"now":   now.UTC(),
		"today": now.UTC().Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDefaultValueExpr, err)
	}
	v, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("%w: non-string result", ErrDefaultValueExpr)
	}
	return v, nil
}
