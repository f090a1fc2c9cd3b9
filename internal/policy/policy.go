// Package policy defines versioned scoring policies and resolves
// (vertical, sub-vertical, region) to a persona.
//
// Policies are immutable snapshots: a new version is a new document, never an
// in-place edit, so any past evaluation stays reproducible against the policy
// version it recorded. Resolution is strict: an unconfigured combination
// fails with VERTICAL_NOT_CONFIGURED rather than falling back to another
// persona's thresholds.
package policy

import (
	"fmt"
)

// EdgeCaseAction is what a triggered rule does to the evaluation
type EdgeCaseAction string

const (
	ActionBlock EdgeCaseAction = "BLOCK" // forces REJECT; first BLOCK decides
	ActionSkip  EdgeCaseAction = "SKIP"  // recorded as a flag only
	ActionWarn  EdgeCaseAction = "WARN"  // recorded as a flag only
	ActionBoost EdgeCaseAction = "BOOST" // multiplies the composite score
)

// IsValid checks if the action value is valid
func (a EdgeCaseAction) IsValid() bool {
	switch a {
	case ActionBlock, ActionSkip, ActionWarn, ActionBoost:
		return true
	}
	return false
}

// Severity grades a triggered edge case
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Condition is a predicate over one entity field
type Condition struct {
	Field string      `yaml:"field" json:"field"`
	Op    string      `yaml:"op" json:"op"`
	Value interface{} `yaml:"value" json:"value"`
}

// Validate checks if the condition has valid values
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition field is required")
	}
	switch c.Op {
	case "lt", "lte", "gt", "gte", "eq", "neq":
		return nil
	}
	return fmt.Errorf("invalid condition op: %s", c.Op)
}

// EdgeCaseRule is one override rule. Rules are evaluated in declaration
// order. All rules are evaluated for reporting; the first BLOCK alone
// determines the terminal decision.
type EdgeCaseRule struct {
	Type        string         `yaml:"type" json:"type"`
	Condition   Condition      `yaml:"condition" json:"condition"`
	Action      EdgeCaseAction `yaml:"action" json:"action"`
	Severity    Severity       `yaml:"severity" json:"severity"`
	Multiplier  float64        `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	CanOverride bool           `yaml:"can_override" json:"can_override"`
}

// Validate checks if the rule has valid values
func (r EdgeCaseRule) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("rule type is required")
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("rule %s: invalid action %s", r.Type, r.Action)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("rule %s: invalid severity %s", r.Type, r.Severity)
	}
	if r.Action == ActionBoost && r.Multiplier <= 0 {
		return fmt.Errorf("rule %s: BOOST requires a positive multiplier", r.Type)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.Type, err)
	}
	return nil
}

// Factor declares one scored category: the entity field it reads, the curve
// that maps the raw value to [0, 1], and its weight. Factors are an ordered
// list so the weighted summation order is fixed by the policy document.
type Factor struct {
	Category string             `yaml:"category" json:"category"`
	Field    string             `yaml:"field" json:"field"`
	Kind     string             `yaml:"kind" json:"kind"`
	Weight   float64            `yaml:"weight" json:"weight"`
	Floor    float64            `yaml:"floor,omitempty" json:"floor,omitempty"`
	Ceil     float64            `yaml:"ceil,omitempty" json:"ceil,omitempty"`
	Map      map[string]float64 `yaml:"map,omitempty" json:"map,omitempty"`
}

// Factor kinds.
const (
	KindLogScale = "log_scale" // log-interpolated between floor and ceil
	KindDirect   = "direct"    // value already in [0,1], clamped
	KindInverse  = "inverse"   // 1 - value, clamped
	KindTrendMap = "trend_map" // string value looked up in Map
)

// Validate checks if the factor has valid values
func (f Factor) Validate() error {
	if f.Category == "" {
		return fmt.Errorf("factor category is required")
	}
	if f.Field == "" {
		return fmt.Errorf("factor %s: field is required", f.Category)
	}
	if f.Weight <= 0 {
		return fmt.Errorf("factor %s: weight must be positive (got %v)", f.Category, f.Weight)
	}
	switch f.Kind {
	case KindLogScale:
		if f.Floor <= 0 || f.Ceil <= f.Floor {
			return fmt.Errorf("factor %s: log_scale requires 0 < floor < ceil", f.Category)
		}
	case KindDirect, KindInverse:
		// no parameters
	case KindTrendMap:
		if len(f.Map) == 0 {
			return fmt.Errorf("factor %s: trend_map requires a value map", f.Category)
		}
	default:
		return fmt.Errorf("factor %s: invalid kind %s", f.Category, f.Kind)
	}
	return nil
}

// Thresholds are the decision cut points over the composite score
type Thresholds struct {
	ApproveMinScore float64 `yaml:"approve_min_score" json:"approve_min_score"`
	RejectMaxScore  float64 `yaml:"reject_max_score" json:"reject_max_score"`
}

// Validate checks if the thresholds have valid values
func (t Thresholds) Validate() error {
	if t.ApproveMinScore < 0 || t.ApproveMinScore > 1 {
		return fmt.Errorf("approve_min_score must be in [0,1] (got %v)", t.ApproveMinScore)
	}
	if t.RejectMaxScore < 0 || t.RejectMaxScore > 1 {
		return fmt.Errorf("reject_max_score must be in [0,1] (got %v)", t.RejectMaxScore)
	}
	if t.RejectMaxScore >= t.ApproveMinScore {
		return fmt.Errorf("reject_max_score (%v) must be below approve_min_score (%v)",
			t.RejectMaxScore, t.ApproveMinScore)
	}
	return nil
}

// Vocabulary is the persona's private wording for reasoning output.
// The engine may only assemble reasoning from these strings, so a policy
// built for one entity type can never reference another's domain terms.
type Vocabulary struct {
	FactorLabels map[string]string `yaml:"factor_labels" json:"factor_labels"`
	RuleMessages map[string]string `yaml:"rule_messages" json:"rule_messages"`
}

// Policy is one immutable, versioned scoring policy
type Policy struct {
	PersonaKey    string         `yaml:"persona_key" json:"persona_key"`
	PolicyVersion string         `yaml:"policy_version" json:"policy_version"`
	Factors       []Factor       `yaml:"factors" json:"factors"`
	EdgeCases     []EdgeCaseRule `yaml:"edge_cases" json:"edge_cases"`
	Thresholds    Thresholds     `yaml:"decision_thresholds" json:"decision_thresholds"`
	Vocabulary    Vocabulary     `yaml:"vocabulary" json:"vocabulary"`
}

// Validate checks the policy for structural soundness, including that the
// vocabulary covers every factor category and edge-case rule type.
func (p *Policy) Validate() error {
	if p.PersonaKey == "" {
		return fmt.Errorf("persona_key is required")
	}
	if p.PolicyVersion == "" {
		return fmt.Errorf("policy_version is required")
	}
	if len(p.Factors) == 0 {
		return fmt.Errorf("policy %s: at least one factor is required", p.PersonaKey)
	}
	seen := make(map[string]bool, len(p.Factors))
	for _, f := range p.Factors {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", p.PersonaKey, err)
		}
		if seen[f.Category] {
			return fmt.Errorf("policy %s: duplicate factor category %s", p.PersonaKey, f.Category)
		}
		seen[f.Category] = true
		if _, ok := p.Vocabulary.FactorLabels[f.Category]; !ok {
			return fmt.Errorf("policy %s: vocabulary missing label for factor %s", p.PersonaKey, f.Category)
		}
	}
	for _, r := range p.EdgeCases {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", p.PersonaKey, err)
		}
		if _, ok := p.Vocabulary.RuleMessages[r.Type]; !ok {
			return fmt.Errorf("policy %s: vocabulary missing message for rule %s", p.PersonaKey, r.Type)
		}
	}
	if err := p.Thresholds.Validate(); err != nil {
		return fmt.Errorf("policy %s: %w", p.PersonaKey, err)
	}
	return nil
}

// Persona binds a policy to a (vertical, sub-vertical, region) combination
type Persona struct {
	PersonaKey  string  `yaml:"persona_key" json:"persona_key"`
	PersonaID   string  `yaml:"persona_id" json:"persona_id"`
	Vertical    string  `yaml:"vertical" json:"vertical"`
	SubVertical string  `yaml:"sub_vertical" json:"sub_vertical"`
	Region      string  `yaml:"region" json:"region"`
	Policy      *Policy `yaml:"policy" json:"policy"`
}

// Validate checks if the persona has valid values
func (p *Persona) Validate() error {
	if p.PersonaKey == "" {
		return fmt.Errorf("persona_key is required")
	}
	if p.Vertical == "" || p.SubVertical == "" || p.Region == "" {
		return fmt.Errorf("persona %s: vertical, sub_vertical and region are required", p.PersonaKey)
	}
	if p.Policy == nil {
		return fmt.Errorf("persona %s: policy is required", p.PersonaKey)
	}
	if p.Policy.PersonaKey != p.PersonaKey {
		return fmt.Errorf("persona %s: policy carries mismatched persona_key %s",
			p.PersonaKey, p.Policy.PersonaKey)
	}
	return p.Policy.Validate()
}
