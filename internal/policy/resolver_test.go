package policy

import (
	"errors"
	"testing"

	"github.com/dealdesk/verdict/internal/types"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	set, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("failed to load embedded policy set: %v", err)
	}
	resolver, err := NewResolver(set)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}
	return resolver
}

func TestEmbeddedPolicySetIsValid(t *testing.T) {
	set, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("embedded policy set must load: %v", err)
	}
	if err := set.Validate(); err != nil {
		t.Errorf("embedded policy set must validate: %v", err)
	}
}

func TestResolveConfigured(t *testing.T) {
	resolver := newTestResolver(t)

	res, err := resolver.Resolve("saas", "smb", "north_america")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.PersonaKey != "saas_smb_na" {
		t.Errorf("expected persona saas_smb_na, got %s", res.PersonaKey)
	}
	if res.PolicyVersion == "" {
		t.Error("resolution must carry the policy version")
	}
	if res.Policy == nil {
		t.Fatal("resolution must carry the policy")
	}
}

func TestResolveUnconfigured(t *testing.T) {
	resolver := newTestResolver(t)

	tests := []struct {
		name                          string
		vertical, subVertical, region string
	}{
		{"unknown vertical", "unknown_vertical", "smb", "north_america"},
		{"unknown sub-vertical", "saas", "enterprise", "north_america"},
		{"unknown region", "saas", "smb", "antarctica"},
		{"no partial match", "saas", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(tt.vertical, tt.subVertical, tt.region)
			if err == nil {
				t.Fatal("expected VERTICAL_NOT_CONFIGURED, got nil")
			}
			if !errors.Is(err, types.ErrVerticalNotConfigured) {
				t.Errorf("expected VERTICAL_NOT_CONFIGURED, got %v", err)
			}
			if types.ErrorCode(err) != types.CodeVerticalNotConfigured {
				t.Errorf("expected stable code, got %s", types.ErrorCode(err))
			}
		})
	}
}

func TestPolicySetRejectsDuplicateCombos(t *testing.T) {
	set, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("failed to load embedded policy set: %v", err)
	}
	dup := *set.Personas[0]
	set.Personas = append(set.Personas, &dup)
	if err := set.Validate(); err == nil {
		t.Error("duplicate combination must fail validation")
	}
}

func TestPolicyValidationVocabularyCoverage(t *testing.T) {
	set, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("failed to load embedded policy set: %v", err)
	}
	pol := set.Personas[0].Policy

	// Removing a rule message must break validation: reasoning may only be
	// assembled from the persona's own vocabulary.
	saved := pol.Vocabulary.RuleMessages
	pol.Vocabulary.RuleMessages = map[string]string{}
	if err := pol.Validate(); err == nil {
		t.Error("policy without rule messages must fail validation")
	}
	pol.Vocabulary.RuleMessages = saved
}

func TestThresholdValidation(t *testing.T) {
	tests := []struct {
		name        string
		thresholds  Thresholds
		expectError bool
	}{
		{"valid", Thresholds{ApproveMinScore: 0.8, RejectMaxScore: 0.4}, false},
		{"inverted", Thresholds{ApproveMinScore: 0.4, RejectMaxScore: 0.8}, true},
		{"equal", Thresholds{ApproveMinScore: 0.5, RejectMaxScore: 0.5}, true},
		{"out of range", Thresholds{ApproveMinScore: 1.2, RejectMaxScore: 0.4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.thresholds.Validate()
			if tt.expectError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEdgeCaseRuleValidation(t *testing.T) {
	valid := EdgeCaseRule{
		Type:      "test_rule",
		Condition: Condition{Field: "x", Op: "lt", Value: 1.0},
		Action:    ActionWarn,
		Severity:  SeverityLow,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	boost := valid
	boost.Action = ActionBoost
	if err := boost.Validate(); err == nil {
		t.Error("BOOST without multiplier must fail")
	}
	boost.Multiplier = 1.1
	if err := boost.Validate(); err != nil {
		t.Errorf("BOOST with multiplier rejected: %v", err)
	}

	badOp := valid
	badOp.Condition.Op = "contains"
	if err := badOp.Validate(); err == nil {
		t.Error("unknown condition op must fail")
	}
}
