// Package engine evaluates entities against versioned scoring policies.
//
// Evaluation is fully deterministic: factor scores are pure functions of
// entity fields, the weighted composite is summed in policy-declared order so
// floating-point summation order is fixed, and edge cases run in declaration
// order. Identical (entity, policy) input always produces a structurally
// identical result.
package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/dealdesk/verdict/internal/policy"
	"github.com/dealdesk/verdict/internal/types"
)

// Evaluate scores the entity under the policy and returns the terminal
// decision. Either a full result is produced or a typed error is returned;
// there is no partial or best-effort output. A missing required field fails
// fast with INVALID_ENTITY naming the field rather than defaulting the
// factor score to zero.
func Evaluate(entity map[string]interface{}, pol *policy.Policy) (*types.EvaluationResult, error) {
	if pol == nil {
		return nil, fmt.Errorf("policy is required")
	}

	// Step 1+2: factor scores and weighted composite, in declared order
	var weightedSum, totalWeight float64
	dominantLabel := ""
	dominantContribution := -1.0
	for _, f := range pol.Factors {
		score, err := factorScore(entity, f)
		if err != nil {
			return nil, err
		}
		contribution := score * f.Weight
		weightedSum += contribution
		totalWeight += f.Weight

		// Ties keep the earlier factor, so the dominant label is stable
		if contribution > dominantContribution {
			dominantContribution = contribution
			dominantLabel = pol.Vocabulary.FactorLabels[f.Category]
		}
	}
	composite := weightedSum / totalWeight

	// Step 3: edge cases in declared order. Every rule is evaluated for
	// reporting; the first BLOCK alone determines the terminal decision.
	var triggered []string
	var flagged []string
	var blockRule *policy.EdgeCaseRule
	score := composite
	for i := range pol.EdgeCases {
		rule := &pol.EdgeCases[i]
		hit, err := evalCondition(rule.Condition, entity)
		if err != nil {
			return nil, err
		}
		if !hit {
			continue
		}
		triggered = append(triggered, rule.Type)
		switch rule.Action {
		case policy.ActionBlock:
			if blockRule == nil {
				blockRule = rule
			}
		case policy.ActionBoost:
			if blockRule == nil {
				score = clamp01(score * rule.Multiplier)
			}
		case policy.ActionWarn, policy.ActionSkip:
			flagged = append(flagged, pol.Vocabulary.RuleMessages[rule.Type])
		}
	}

	// Step 4: thresholds (unless a BLOCK already decided)
	var decision types.Decision
	overrideReason := ""
	switch {
	case blockRule != nil:
		decision = types.DecisionReject
		overrideReason = pol.Vocabulary.RuleMessages[blockRule.Type]
	case score >= pol.Thresholds.ApproveMinScore:
		decision = types.DecisionApprove
	case score < pol.Thresholds.RejectMaxScore:
		decision = types.DecisionReject
	default:
		decision = types.DecisionNeedsReview
	}

	result := &types.EvaluationResult{
		Decision:           decision,
		Score:              score,
		EdgeCasesTriggered: triggered,
		Reasoning:          composeReasoning(decision, score, dominantLabel, overrideReason, flagged),
		PersonaKey:         pol.PersonaKey,
		PolicyVersion:      pol.PolicyVersion,
		OverrideReason:     overrideReason,
		Deterministic:      true,
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("evaluation produced invalid result: %w", err)
	}
	return result, nil
}

// composeReasoning assembles the explanation strictly from the persona's
// vocabulary plus neutral connective wording. Entity-type terms may only
// enter through the vocabulary, never from the engine itself.
func composeReasoning(decision types.Decision, score float64, dominantLabel, overrideReason string, flagged []string) string {
	if overrideReason != "" {
		return fmt.Sprintf("Rejected: %s.", overrideReason)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Composite score %.2f, driven by %s.", score, dominantLabel)
	if len(flagged) > 0 {
		fmt.Fprintf(&b, " Flagged: %s.", strings.Join(flagged, "; "))
	}
	return b.String()
}

// factorScore maps one entity field through the factor's curve to [0, 1]
func factorScore(entity map[string]interface{}, f policy.Factor) (float64, error) {
	switch f.Kind {
	case policy.KindLogScale:
		v, err := numberField(entity, f.Field)
		if err != nil {
			return 0, err
		}
		if v <= f.Floor {
			return 0, nil
		}
		if v >= f.Ceil {
			return 1, nil
		}
		return math.Log10(v/f.Floor) / math.Log10(f.Ceil/f.Floor), nil

	case policy.KindDirect:
		v, err := numberField(entity, f.Field)
		if err != nil {
			return 0, err
		}
		return clamp01(v), nil

	case policy.KindInverse:
		v, err := numberField(entity, f.Field)
		if err != nil {
			return 0, err
		}
		return clamp01(1 - v), nil

	case policy.KindTrendMap:
		s, err := stringField(entity, f.Field)
		if err != nil {
			return 0, err
		}
		score, ok := f.Map[s]
		if !ok {
			return 0, &types.CodedError{
				Code:    types.CodeInvalidEntity,
				Message: fmt.Sprintf("field %q has unsupported value %q", f.Field, s),
			}
		}
		return score, nil
	}
	return 0, fmt.Errorf("unknown factor kind: %s", f.Kind)
}

// evalCondition applies a rule predicate to the entity. A condition over a
// field the entity does not carry simply does not trigger; only factor
// fields are required.
func evalCondition(c policy.Condition, entity map[string]interface{}) (bool, error) {
	raw, ok := entity[c.Field]
	if !ok || raw == nil {
		return false, nil
	}

	if want, ok := toNumber(c.Value); ok {
		got, ok := toNumber(raw)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case "lt":
			return got < want, nil
		case "lte":
			return got <= want, nil
		case "gt":
			return got > want, nil
		case "gte":
			return got >= want, nil
		case "eq":
			return got == want, nil
		case "neq":
			return got != want, nil
		}
		return false, fmt.Errorf("invalid condition op: %s", c.Op)
	}

	wantStr := fmt.Sprintf("%v", c.Value)
	gotStr, ok := raw.(string)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case "eq":
		return gotStr == wantStr, nil
	case "neq":
		return gotStr != wantStr, nil
	case "lt", "lte", "gt", "gte":
		return false, nil
	}
	return false, fmt.Errorf("invalid condition op: %s", c.Op)
}

func numberField(entity map[string]interface{}, field string) (float64, error) {
	raw, ok := entity[field]
	if !ok || raw == nil {
		return 0, types.InvalidEntity(field)
	}
	v, ok := toNumber(raw)
	if !ok {
		return 0, &types.CodedError{
			Code:    types.CodeInvalidEntity,
			Message: fmt.Sprintf("field %q must be numeric (got %T)", field, raw),
		}
	}
	return v, nil
}

func stringField(entity map[string]interface{}, field string) (string, error) {
	raw, ok := entity[field]
	if !ok || raw == nil {
		return "", types.InvalidEntity(field)
	}
	s, ok := raw.(string)
	if !ok {
		return "", &types.CodedError{
			Code:    types.CodeInvalidEntity,
			Message: fmt.Sprintf("field %q must be a string (got %T)", field, raw),
		}
	}
	return s, nil
}

// toNumber coerces the numeric types JSON and YAML decoding produce
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
