package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// Rule is a declarative validation evaluated before persistence. Expr is a
// CEL expression over the candidate values bound to "self" and must return
// a bool; false rejects the write with Message reported against Field.
type Rule struct {
	Field   string
	Expr    string
	Message string
}

type program struct {
	rule Rule
	prg  cel.Program
}

func newRulesEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("self", cel.MapType(cel.StringType, cel.DynType)))
}

func compileRules(rules []Rule) ([]program, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	env, err := newRulesEnv()
	if err != nil {
		return nil, err
	}
	out := make([]program, 0, len(rules))
	for _, r := range rules {
		expr := strings.TrimSpace(r.Expr)
		if expr == "" {
			return nil, errors.New("rule expression required")
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q must evaluate to bool", expr)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", expr, err)
		}
		out = append(out, program{rule: r, prg: prg})
	}
	return out, nil
}

// CheckRules evaluates the type's rules against candidate values. All
// failures are collected into one VALIDATION_FAILED error. A rule that cannot
// be evaluated (for example a missing optional value) counts as failed.
func (t *EntityType) CheckRules(values map[string]any) error {
	var failures []apperrors.FieldError
	for _, p := range t.programs {
		out, _, err := p.prg.Eval(map[string]any{"self": values})
		if err == nil {
			if ok, isBool := out.Value().(bool); isBool && ok {
				continue
			}
		}
		msg := p.rule.Message
		if msg == "" {
			msg = "rule not satisfied: " + p.rule.Expr
		}
		failures = append(failures, apperrors.FieldError{
			Field:   p.rule.Field,
			Code:    "RULE_VIOLATION",
			Message: msg,
		})
	}
	if len(failures) > 0 {
		return apperrors.ErrValidationFailed(failures...)
	}
	return nil
}
