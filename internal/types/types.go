package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// MemoryEntry is a namespaced cache entry with a per-entry expiry.
// Uniqueness is (TenantID, Key); a later Set supersedes the row in place.
type MemoryEntry struct {
	TenantID  string          `json:"tenant_id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at the given instant.
// Expiry is evaluated lazily at read time; expired rows may still exist on disk.
func (e *MemoryEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Fingerprint identifies a side-effecting action by a content hash of its
// type and canonicalized parameters. Immutable once written.
type Fingerprint struct {
	Hash         string          `json:"hash"`
	TenantID     string          `json:"tenant_id"`
	UserID       string          `json:"user_id"`
	ActionType   string          `json:"action_type"`
	ActionParams json.RawMessage `json:"action_params"`
	ActionID     string          `json:"action_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks if the fingerprint has valid field values
func (f *Fingerprint) Validate() error {
	if f.Hash == "" {
		return fmt.Errorf("hash is required")
	}
	if f.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if f.ActionType == "" {
		return fmt.Errorf("action_type is required")
	}
	return nil
}

// ActionRecord is the append-only log row behind similarity search.
// Records are never mutated; every Fingerprint references exactly one record.
type ActionRecord struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	UserID         string          `json:"user_id"`
	ActionType     string          `json:"action_type"`
	ActionMetadata json.RawMessage `json:"action_metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks if the action record has valid field values
func (a *ActionRecord) Validate() error {
	if a.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if a.ActionType == "" {
		return fmt.Errorf("action_type is required")
	}
	return nil
}

// Decision is the terminal outcome of an evaluation
type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
	DecisionReject      Decision = "REJECT"
)

// IsValid checks if the decision value is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionNeedsReview, DecisionReject:
		return true
	}
	return false
}

// EvaluationResult is the reproducible output of the decision engine.
// It is derived state: recomputable from (entity snapshot, policy version)
// and cached only as an optimization.
type EvaluationResult struct {
	Decision           Decision `json:"decision"`
	Score              float64  `json:"score"`
	EdgeCasesTriggered []string `json:"edge_cases_triggered"`
	Reasoning          string   `json:"reasoning"`
	PersonaKey         string   `json:"persona_key"`
	PolicyVersion      string   `json:"policy_version"`
	OverrideReason     string   `json:"override_reason,omitempty"`
	Deterministic      bool     `json:"deterministic"`
}

// Validate checks if the evaluation result has valid field values
func (r *EvaluationResult) Validate() error {
	if !r.Decision.IsValid() {
		return fmt.Errorf("invalid decision: %s", r.Decision)
	}
	if r.Score < 0.0 || r.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0 (got %.4f)", r.Score)
	}
	if !r.Deterministic {
		return fmt.Errorf("evaluation results must be marked deterministic")
	}
	return nil
}

// ActionContext carries the identifying fields of an action used for
// similarity comparison. Fields are optional; comparison only considers
// fields present on both sides.
type ActionContext struct {
	EntityID    string `json:"entity_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
}

// Empty reports whether the context carries no comparable fields.
func (c ActionContext) Empty() bool {
	return c == ActionContext{}
}
