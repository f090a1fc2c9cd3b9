// Package history queries persisted action records and surfaces advisories
// when a new action looks like a near-duplicate of a prior one.
//
// This path is advisory-only. It never blocks or mutates the action, and it
// runs alongside, never in place of, the fingerprint engine's exact check.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealdesk/verdict/internal/similarity"
	"github.com/dealdesk/verdict/internal/storage"
	"github.com/dealdesk/verdict/internal/types"
)

// Config holds configuration for similarity lookups
type Config struct {
	// Lookback bounds how far back to search for similar actions.
	// Default: 30 days
	Lookback time.Duration

	// MaxCandidates caps how many recent records are scored per query.
	// Default: 50
	MaxCandidates int
}

// DefaultConfig returns the default history configuration
func DefaultConfig() Config {
	return Config{
		Lookback:      30 * 24 * time.Hour,
		MaxCandidates: 50,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive (got %v)", c.Lookback)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive (got %d)", c.MaxCandidates)
	}
	return nil
}

// Finder searches action history for near-duplicates
type Finder struct {
	storage storage.Storage
	config  Config
}

// NewFinder creates a history finder over the given storage backend
func NewFinder(st storage.Storage, cfg Config) *Finder {
	return &Finder{storage: st, config: cfg}
}

// Query describes the current action being checked for similar history
type Query struct {
	TenantID   string             `json:"tenant_id"`
	UserID     string             `json:"user_id"`
	ActionType string             `json:"action_type"`
	Context    similarity.Context `json:"context"`

	// ExcludeActionID drops the current action's own record from the search
	// when it was already persisted before the lookup runs.
	ExcludeActionID string `json:"exclude_action_id,omitempty"`
}

// SimilarAction is one past action that cleared the warning threshold
type SimilarAction struct {
	ActionID      string    `json:"action_id"`
	CreatedAt     time.Time `json:"created_at"`
	Score         float64   `json:"score"`
	MatchedFields []string  `json:"matched_fields"`
}

// FindResult is the outcome of a similarity search
type FindResult struct {
	HasSimilar     bool            `json:"has_similar"`
	SimilarActions []SimilarAction `json:"similar_actions,omitempty"`
	Advisory       string          `json:"advisory,omitempty"`
}

// FindSimilar queries recent action records for the tenant/user/actionType,
// scores each against the current context, and keeps those where ShouldWarn
// is true. When any match survives, a human-readable advisory names the most
// recent one and the elapsed time in natural units.
func (f *Finder) FindSimilar(ctx context.Context, q Query) (*FindResult, error) {
	if q.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if q.Context.Empty() {
		return &FindResult{HasSimilar: false}, nil
	}

	records, err := f.storage.GetRecentActions(ctx, storage.ActionFilter{
		TenantID:   q.TenantID,
		UserID:     q.UserID,
		ActionType: q.ActionType,
		Since:      time.Now().Add(-f.config.Lookback),
		Limit:      f.config.MaxCandidates,
	})
	if err != nil {
		return nil, types.StorageUnavailable(err)
	}

	current := q.Context
	var matches []SimilarAction
	for _, rec := range records {
		if q.ExcludeActionID != "" && rec.ID == q.ExcludeActionID {
			continue
		}
		past, ok := contextFromMetadata(rec)
		if !ok {
			continue
		}
		if !similarity.ShouldWarn(current, past) {
			continue
		}
		result := similarity.Calculate(current, past)
		matches = append(matches, SimilarAction{
			ActionID:      rec.ID,
			CreatedAt:     rec.CreatedAt,
			Score:         result.Score,
			MatchedFields: result.MatchedFields,
		})
	}

	if len(matches) == 0 {
		return &FindResult{HasSimilar: false}, nil
	}

	// Most recent first; score breaks ties so the ordering is stable
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].Score > matches[j].Score
	})

	return &FindResult{
		HasSimilar:     true,
		SimilarActions: matches,
		Advisory:       composeAdvisory(q.ActionType, matches, time.Now()),
	}, nil
}

// contextFromMetadata decodes the comparable fields out of an action
// record's metadata. Records with malformed or empty metadata are skipped
// rather than failing the whole query.
func contextFromMetadata(rec *types.ActionRecord) (similarity.Context, bool) {
	var past similarity.Context
	if len(rec.ActionMetadata) == 0 {
		return past, false
	}
	if err := json.Unmarshal(rec.ActionMetadata, &past); err != nil {
		log.Debug().Err(err).Str("action_id", rec.ID).Msg("skipping record with malformed metadata")
		return past, false
	}
	if past.Empty() {
		return past, false
	}
	return past, true
}

// composeAdvisory builds the human-readable notice for the best match
func composeAdvisory(actionType string, matches []SimilarAction, now time.Time) string {
	best := matches[0]
	when := formatElapsed(now, best.CreatedAt)

	label := "action"
	if actionType != "" {
		label = actionType + " action"
	}
	if len(matches) == 1 {
		return fmt.Sprintf("A similar %s was taken %s.", label, when)
	}
	return fmt.Sprintf("%d similar %ss found; the most recent was %s.", len(matches), label, when)
}

// formatElapsed names the elapsed time in natural units
func formatElapsed(now, then time.Time) string {
	days := int(now.Sub(then).Hours() / 24)
	switch {
	case days <= 0:
		return "earlier today"
	case days == 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
