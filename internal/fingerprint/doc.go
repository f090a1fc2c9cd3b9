// Package fingerprint implements exact-duplicate detection for side-effecting
// actions.
//
// An action is identified by a content hash of its type plus its parameters
// in canonical form: object keys are sorted lexicographically at every level,
// so the hash is invariant under parameter construction order. Two requests
// are "the same action" iff their hashes are equal and the earlier one falls
// inside the dedup window configured for that action type.
//
// The check-then-write is a single logical operation. The storage layer
// serializes the existence check and the insert per (tenant, hash), so two
// concurrent identical requests cannot both observe "not a duplicate". On a
// duplicate the engine performs no write at all: repeated submissions are
// idempotent no-ops that return the original action's identity.
//
// Example usage:
//
//	engine := fingerprint.NewEngine(store, fingerprint.DefaultConfig())
//
//	result, err := engine.CheckAndRecord(ctx, fingerprint.CheckRequest{
//	    TenantID:   "tenant-1",
//	    UserID:     "user-1",
//	    ActionType: "outreach_email",
//	    ActionParams: map[string]interface{}{
//	        "company_id": "c_123",
//	        "template":   "intro",
//	    },
//	})
//	if err != nil {
//	    log.Error().Err(err).Msg("dedup check failed")
//	}
//	if result.IsDuplicate {
//	    // short-circuit with the original outcome
//	}
//
// Duplicate detection here is exact. Near-duplicate recognition is the
// similarity detector's job and runs on a separate, advisory-only path.
package fingerprint
