// Package alerts evaluates named CEL rules against balance snapshots, so
// stock alerting is configurable without redeploying.
package alerts

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"backoffice/internal/domain/storage"
	"backoffice/pkg/logger"
)

// Rule is one named alert condition.
type Rule struct {
	Name string `mapstructure:"name" json:"name"`
	// Expr is a CEL expression over the balance environment, e.g.
	// "has_deficit || qty < min_stock".
	Expr string `mapstructure:"expr" json:"expr"`
	// Severity is free-form ("info", "warning", "critical").
	Severity string `mapstructure:"severity" json:"severity"`
}

// Alert is a triggered rule for one balance.
type Alert struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Engine holds compiled rules. Compile once at startup; Evaluate is safe for
// concurrent use.
type Engine struct {
	rules []compiledRule
}

// DefaultRules cover the flags dashboards always want.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "below_min_stock", Expr: "min_stock > 0.0 && qty < min_stock", Severity: "warning"},
		{Name: "expired_stock", Expr: "expiry_status == 'expired'", Severity: "critical"},
		{Name: "expiring_stock", Expr: "expiry_status == 'expiring'", Severity: "warning"},
		{Name: "outstanding_deficit", Expr: "has_deficit", Severity: "warning"},
		{Name: "unresolved_cost", Expr: "has_unresolved_cost", Severity: "critical"},
	}
}

// NewEngine compiles the rules. A rule that fails to compile is an error:
// bad configuration should stop startup, not silently disable alerting.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("qty", cel.DoubleType),
		cel.Variable("value", cel.DoubleType),
		cel.Variable("min_stock", cel.DoubleType),
		cel.Variable("expiry_status", cel.StringType),
		cel.Variable("cost_trend", cel.StringType),
		cel.Variable("has_unresolved_cost", cel.BoolType),
		cel.Variable("has_deficit", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q: expression must evaluate to bool, got %s",
				rule.Name, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build program for rule %q: %w", rule.Name, err)
		}
		e.rules = append(e.rules, compiledRule{rule: rule, program: program})
	}
	return e, nil
}

// Evaluate returns the alerts triggered by a balance, sorted by rule name.
// A rule that errors at evaluation time is logged and skipped; one bad rule
// must not mute the rest.
func (e *Engine) Evaluate(ctx context.Context, balance storage.Balance) []Alert {
	activation := map[string]any{
		"qty":                 balance.TotalQuantity.Float64(),
		"value":               balance.TotalValue.InexactFloat64(),
		"min_stock":           balance.MinStock.Float64(),
		"expiry_status":       string(balance.Expiry.Status),
		"cost_trend":          string(balance.CostTrend),
		"has_unresolved_cost": balance.HasUnresolvedCost,
		"has_deficit":         balance.HasDeficit,
	}
	var triggered []Alert
	for _, cr := range e.rules {
		out, _, err := cr.program.Eval(activation)
		if err != nil {
			logger.Warn(ctx, "alert rule evaluation failed",
				"rule", cr.rule.Name, "error", err)
			continue
		}
		hit, ok := out.Value().(bool)
		if !ok || !hit {
			continue
		}
		triggered = append(triggered, Alert{Rule: cr.rule.Name, Severity: cr.rule.Severity})
	}

	sort.Slice(triggered, func(i, j int) bool {
		return triggered[i].Rule < triggered[j].Rule
	})
	return triggered
}
