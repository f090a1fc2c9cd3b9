package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dealdesk/verdict/internal/engine"
	"github.com/dealdesk/verdict/internal/fingerprint"
	"github.com/dealdesk/verdict/internal/history"
	"github.com/dealdesk/verdict/internal/memory"
	"github.com/dealdesk/verdict/internal/types"
)

const actionTypeDealEvaluation = "deal_evaluation"

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// writeCodedError maps the error taxonomy to HTTP statuses. Every error
// carries a stable machine-readable code plus a human-readable message.
func writeCodedError(w http.ResponseWriter, err error) {
	code := types.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case types.CodeVerticalNotConfigured:
		status = http.StatusNotFound
	case types.CodeInvalidEntity, types.CodeInvalidRequest:
		status = http.StatusBadRequest
	case types.CodeStorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, code, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"policy_resolver": "ok",
		"storage":         "ok",
	}
	status := "ok"
	httpStatus := http.StatusOK
	if _, _, err := s.memoryStore.Get(r.Context(), "health", "probe"); err != nil {
		components["storage"] = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]interface{}{
		"status":     status,
		"uptime":     time.Since(s.startTime).String(),
		"components": components,
	})
}

type evaluateDealRequest struct {
	DealID      string                 `json:"deal_id"`
	TenantID    string                 `json:"tenant_id"`
	UserID      string                 `json:"user_id"`
	Vertical    string                 `json:"vertical"`
	SubVertical string                 `json:"sub_vertical"`
	Region      string                 `json:"region"`
	DealData    map[string]interface{} `json:"deal_data"`
	Context     types.ActionContext    `json:"context"`
}

func (req *evaluateDealRequest) validate() error {
	switch {
	case req.DealID == "":
		return types.InvalidRequest("deal_id is required")
	case req.TenantID == "":
		return types.InvalidRequest("tenant_id is required")
	case req.Vertical == "" || req.SubVertical == "" || req.Region == "":
		return types.InvalidRequest("vertical, sub_vertical and region are required")
	case len(req.DealData) == 0:
		return types.InvalidRequest("deal_data is required")
	}
	return nil
}

type evaluationDetails struct {
	PersonaKey     string `json:"persona_key"`
	PolicyVersion  string `json:"policy_version"`
	OverrideReason string `json:"override_reason,omitempty"`
}

type evaluationMetadata struct {
	Deterministic    bool   `json:"deterministic"`
	Duplicate        bool   `json:"duplicate"`
	Cached           bool   `json:"cached"`
	Fingerprint      string `json:"fingerprint"`
	ActionID         string `json:"action_id,omitempty"`
	OriginalActionID string `json:"original_action_id,omitempty"`
}

type evaluateDealResponse struct {
	Success            bool                `json:"success"`
	Decision           types.Decision      `json:"decision"`
	Score              float64             `json:"score"`
	Reasoning          string              `json:"reasoning"`
	EdgeCasesTriggered []string            `json:"edge_cases_triggered"`
	EvaluationDetails  evaluationDetails   `json:"evaluation_details"`
	Advisory           *history.FindResult `json:"advisory,omitempty"`
	Metadata           evaluationMetadata  `json:"metadata"`
}

// handleEvaluateDeal runs the full pipeline: resolve the persona, check the
// action fingerprint (a duplicate short-circuits to the cached result when one
// is still live), then evaluate the deal while the history advisory runs
// concurrently. The advisory never blocks or fails the evaluation.
func (s *Server) handleEvaluateDeal(w http.ResponseWriter, r *http.Request) {
	var req evaluateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeCodedError(w, err)
		return
	}
	// The body tenant_id is the authoritative rate-limit key; the X-Tenant-ID
	// header handled in the middleware is only a pre-parse fast reject and
	// must not let a mismatched header bypass this bucket.
	if s.rateLimiter != nil && !s.rateLimiter.Allow(req.TenantID) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "tenant request rate exceeded")
		return
	}
	ctx := r.Context()

	resolution, err := s.resolver.Resolve(req.Vertical, req.SubVertical, req.Region)
	if err != nil {
		writeCodedError(w, err)
		return
	}

	check, err := s.fingerprint.CheckAndRecord(ctx, fingerprint.CheckRequest{
		TenantID:   req.TenantID,
		UserID:     req.UserID,
		ActionType: actionTypeDealEvaluation,
		ActionParams: map[string]interface{}{
			"deal_id":      req.DealID,
			"vertical":     req.Vertical,
			"sub_vertical": req.SubVertical,
			"region":       req.Region,
			"deal_data":    req.DealData,
		},
		Metadata: req.Context,
	})
	if err != nil {
		writeCodedError(w, err)
		return
	}

	meta := evaluationMetadata{
		Deterministic: true,
		Fingerprint:   check.Hash,
		ActionID:      check.ActionID,
	}
	cacheKey := memory.Key(memory.CategoryScore, actionTypeDealEvaluation, check.Hash)

	if check.IsDuplicate {
		meta.Duplicate = true
		meta.OriginalActionID = check.Original.ActionID
		if raw, found, err := s.memoryStore.Get(ctx, req.TenantID, cacheKey); err == nil && found {
			var cached types.EvaluationResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				meta.Cached = true
				writeJSON(w, http.StatusOK, buildEvaluateResponse(&cached, nil, meta))
				return
			}
		}
		// Cache expired or unreadable: recompute. The result is identical
		// by construction, so returning a fresh evaluation is safe.
	}

	var (
		result   *types.EvaluationResult
		advisory *history.FindResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := engine.Evaluate(req.DealData, resolution.Policy)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	g.Go(func() error {
		fr, err := s.finder.FindSimilar(gctx, history.Query{
			TenantID:        req.TenantID,
			UserID:          req.UserID,
			ActionType:      actionTypeDealEvaluation,
			Context:         req.Context,
			ExcludeActionID: check.ActionID,
		})
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", req.TenantID).Msg("advisory lookup failed")
			return nil
		}
		advisory = fr
		return nil
	})
	if err := g.Wait(); err != nil {
		writeCodedError(w, err)
		return
	}

	if err := s.memoryStore.Set(ctx, req.TenantID, cacheKey, result, memory.CategoryScore); err != nil {
		log.Warn().Err(err).Str("tenant_id", req.TenantID).Msg("failed to cache evaluation result")
	}

	writeJSON(w, http.StatusOK, buildEvaluateResponse(result, advisory, meta))
}

func buildEvaluateResponse(result *types.EvaluationResult, advisory *history.FindResult, meta evaluationMetadata) *evaluateDealResponse {
	resp := &evaluateDealResponse{
		Success:            true,
		Decision:           result.Decision,
		Score:              result.Score,
		Reasoning:          result.Reasoning,
		EdgeCasesTriggered: result.EdgeCasesTriggered,
		EvaluationDetails: evaluationDetails{
			PersonaKey:     result.PersonaKey,
			PolicyVersion:  result.PolicyVersion,
			OverrideReason: result.OverrideReason,
		},
		Metadata: meta,
	}
	if resp.EdgeCasesTriggered == nil {
		resp.EdgeCasesTriggered = []string{}
	}
	if advisory != nil && advisory.HasSimilar {
		resp.Advisory = advisory
	}
	return resp
}

func (s *Server) handleResolveVertical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vertical := q.Get("vertical")
	subVertical := q.Get("sub_vertical")
	if subVertical == "" {
		subVertical = q.Get("subVertical")
	}
	region := q.Get("region")
	if vertical == "" || subVertical == "" || region == "" {
		writeError(w, http.StatusBadRequest, types.CodeInvalidRequest,
			"vertical, sub_vertical and region query parameters are required")
		return
	}

	res, err := s.resolver.Resolve(vertical, subVertical, region)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"vertical_key":     res.VerticalKey,
		"sub_vertical_key": res.SubVerticalKey,
		"persona_key":      res.PersonaKey,
		"persona_id":       res.PersonaID,
		"policy_version":   res.PolicyVersion,
		"policy":           res.Policy,
	})
}
