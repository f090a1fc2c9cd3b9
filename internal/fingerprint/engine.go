package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dealdesk/verdict/internal/storage"
	"github.com/dealdesk/verdict/internal/types"
)

// Engine performs exact-duplicate detection over durable fingerprints
type Engine struct {
	storage storage.Storage
	config  Config
}

// NewEngine creates a fingerprint engine over the given storage backend
func NewEngine(st storage.Storage, cfg Config) *Engine {
	return &Engine{storage: st, config: cfg}
}

// CheckRequest describes an action to check and, if new, record
type CheckRequest struct {
	TenantID     string                 `json:"tenant_id"`
	UserID       string                 `json:"user_id"`
	ActionType   string                 `json:"action_type"`
	ActionParams map[string]interface{} `json:"action_params"`
	Metadata     interface{}            `json:"metadata,omitempty"`
}

// Validate checks if the request has valid field values
func (r *CheckRequest) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if r.ActionType == "" {
		return fmt.Errorf("action_type is required")
	}
	return nil
}

// OriginalAction identifies the prior action a duplicate collides with
type OriginalAction struct {
	ActionID  string    `json:"action_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckResult is the outcome of a duplicate check. A duplicate is not an
// error: it is a control-flow result carrying the original's identity.
type CheckResult struct {
	IsDuplicate bool            `json:"is_duplicate"`
	Hash        string          `json:"hash"`
	ActionID    string          `json:"action_id,omitempty"`
	Original    *OriginalAction `json:"original,omitempty"`
}

// Generate computes the content hash for an action: SHA-256 over the action
// type and the canonical form of its parameters. Object keys are sorted
// lexicographically at every nesting level, so parameter construction order
// never affects the hash.
func Generate(actionType string, params map[string]interface{}) (string, error) {
	canonical, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize params: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(actionType))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalize produces a stable JSON encoding of the parameters.
// encoding/json marshals map keys in sorted order, so a decode/encode pass
// through interface{} yields sorted keys at every level regardless of how
// the input was constructed.
func canonicalize(params map[string]interface{}) ([]byte, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(decoded)
}

// CheckAndRecord computes the request's fingerprint and checks for a prior
// identical action inside the dedup window for its action type.
//
// If one exists the call returns IsDuplicate=true with the original action's
// identity and performs no write. Otherwise the fingerprint and a new action
// record are persisted atomically and IsDuplicate=false is returned. The
// storage layer serializes the check-and-insert, so concurrent identical
// requests resolve to exactly one recorded action.
func (e *Engine) CheckAndRecord(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid check request: %w", err)
	}

	hash, err := Generate(req.ActionType, req.ActionParams)
	if err != nil {
		return nil, err
	}

	canonical, err := canonicalize(req.ActionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize params: %w", err)
	}
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	actionID := uuid.NewString()

	fp := &types.Fingerprint{
		Hash:         hash,
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		ActionType:   req.ActionType,
		ActionParams: canonical,
		ActionID:     actionID,
		CreatedAt:    now,
	}
	rec := &types.ActionRecord{
		ID:             actionID,
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		ActionType:     req.ActionType,
		ActionMetadata: metadata,
		CreatedAt:      now,
	}

	window := e.config.WindowFor(req.ActionType)
	orig, err := e.storage.CheckAndRecordAction(ctx, fp, rec, now.Add(-window))
	if err != nil {
		return nil, types.StorageUnavailable(err)
	}

	if orig != nil {
		log.Debug().
			Str("tenant_id", req.TenantID).
			Str("action_type", req.ActionType).
			Str("hash", hash).
			Str("original_action_id", orig.ActionID).
			Msg("duplicate action detected")
		return &CheckResult{
			IsDuplicate: true,
			Hash:        hash,
			Original: &OriginalAction{
				ActionID:  orig.ActionID,
				UserID:    orig.UserID,
				CreatedAt: orig.CreatedAt,
			},
		}, nil
	}

	return &CheckResult{
		IsDuplicate: false,
		Hash:        hash,
		ActionID:    actionID,
	}, nil
}
