package adapter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"medisaga/internal/service/booking/domain/port"
)

// DefaultOrderValueThreshold 订单金额超过它即可享受折扣
const DefaultOrderValueThreshold int64 = 1000

// EligibilityRule 一条折扣规则：Condition 求值为 bool，Reason 求值为 string
type EligibilityRule struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition" json:"condition"`
	Reason    string `yaml:"reason" json:"reason"`
}

// DefaultEligibilityRules 按顺序匹配，生日规则优先
func DefaultEligibilityRules() []EligibilityRule {
	return []EligibilityRule{
		{
			Name:      "birthday",
			Condition: `gender == "female" && birth_day == today_day && birth_month == today_month`,
			Reason:    `"Birthday discount - Female customer on birthday"`,
		},
		{
			Name:      "order_value",
			Condition: `base_price > threshold`,
			Reason:    `"Order value discount - Base price ₹" + string(base_price) + " exceeds ₹" + string(threshold)`,
		},
	}
}

type compiledRule struct {
	name      string
	condition cel.Program
	reason    cel.Program
}

// EligibilityCELAdapter 是 port.EligibilityRules 的 CEL 实现。规则在创建时一次性编译。
type EligibilityCELAdapter struct {
	threshold int64
	rules     []compiledRule
}

func NewEligibilityCELAdapter(rules []EligibilityRule, threshold int64) (*EligibilityCELAdapter, error) {
	if len(rules) == 0 {
		rules = DefaultEligibilityRules()
	}
	if threshold <= 0 {
		threshold = DefaultOrderValueThreshold
	}
	env, err := cel.NewEnv(
		cel.Variable("gender", cel.StringType),
		cel.Variable("birth_day", cel.IntType),
		cel.Variable("birth_month", cel.IntType),
		cel.Variable("today_day", cel.IntType),
		cel.Variable("today_month", cel.IntType),
		cel.Variable("base_price", cel.IntType),
		cel.Variable("threshold", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cond, err := compile(env, r.Condition, cel.BoolType)
		if err != nil {
			return nil, fmt.Errorf("rule %s condition: %w", r.Name, err)
		}
		reason, err := compile(env, r.Reason, cel.StringType)
		if err != nil {
			return nil, fmt.Errorf("rule %s reason: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{name: r.Name, condition: cond, reason: reason})
	}
	return &EligibilityCELAdapter{threshold: threshold, rules: compiled}, nil
}

func compile(env *cel.Env, expr string, want *cel.Type) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(want) {
		return nil, fmt.Errorf("expression must return %s, got %s", want, ast.OutputType())
	}
	prg, err := env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

// Evaluate 返回第一条命中的规则
func (a *EligibilityCELAdapter) Evaluate(_ context.Context, fact port.EligibilityFact) (port.Eligibility, error) {
	input := map[string]any{
		"gender":      string(fact.Gender),
		"birth_day":   int64(fact.DateOfBirth.Day()),
		"birth_month": int64(fact.DateOfBirth.Month()),
		"today_day":   int64(fact.Today.Day()),
		"today_month": int64(fact.Today.Month()),
		"base_price":  fact.BasePrice,
		"threshold":   a.threshold,
	}

	for _, r := range a.rules {
		out, _, err := r.condition.Eval(input)
		if err != nil {
			return port.Eligibility{}, fmt.Errorf("eval rule %s: %w", r.name, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return port.Eligibility{}, fmt.Errorf("rule %s: result not bool", r.name)
		}
		if !matched {
			continue
		}

		reason, _, err := r.reason.Eval(input)
		if err != nil {
			return port.Eligibility{}, fmt.Errorf("eval rule %s reason: %w", r.name, err)
		}
		text, _ := reason.Value().(string)
		return port.Eligibility{Eligible: true, Rule: r.name, Reason: text}, nil
	}
	return port.Eligibility{}, nil
}
