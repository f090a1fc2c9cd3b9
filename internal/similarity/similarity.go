// Package similarity computes weighted multi-field similarity between action
// contexts. All functions are pure: no I/O, no clock, no randomness, so the
// same pair of contexts always scores identically.
package similarity

import (
	"strings"

	"github.com/dealdesk/verdict/internal/types"
)

// WarnThreshold is the global score above which a past action is considered
// similar enough to warrant an advisory.
const WarnThreshold = 0.75

// Per-field thresholds for listing a field in MatchedFields.
const (
	domainMatchThreshold = 0.8
	nameMatchThreshold   = 0.7
)

// Field weights for the composite score. Domain identity is a stronger
// signal than free-text name overlap.
const (
	domainWeight  = 0.5
	companyWeight = 0.3
	contactWeight = 0.2
)

// Context is the set of comparable action fields. Fields are optional; only
// fields present on both sides contribute to the score.
type Context = types.ActionContext

// Result is the outcome of comparing two contexts
type Result struct {
	// Score is the weighted average over fields present in both contexts,
	// in [0, 1]. Zero when no field is comparable.
	Score float64 `json:"score"`

	// MatchedFields lists fields whose pairwise similarity cleared their
	// per-field threshold, in fixed declaration order.
	MatchedFields []string `json:"matched_fields"`
}

// StringSimilarity returns a similarity score in [0, 1] for two strings,
// combining token overlap with normalized edit distance. Identical strings
// score 1; strings sharing nothing score 0.
func StringSimilarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	token := tokenOverlap(a, b)
	edit := editSimilarity(a, b)
	if token > edit {
		return token
	}
	return edit
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// tokenOverlap is the Dice coefficient over whitespace tokens
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = true
	}
	shared := 0
	seen := make(map[string]bool, len(tokensB))
	for _, tok := range tokensB {
		if setA[tok] && !seen[tok] {
			shared++
			seen[tok] = true
		}
	}

	return 2 * float64(shared) / float64(len(setA)+len(uniq(tokensB)))
}

func uniq(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// editSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b))
func editSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// DomainSimilarity scores two domains: exact match (after lowercasing and
// stripping a "www." prefix) scores 1, a subdomain of the other scores 0.8,
// anything else scores 0.
func DomainSimilarity(a, b string) float64 {
	a = normalizeDomain(a)
	b = normalizeDomain(b)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a) {
		return 0.8
	}
	return 0
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")
	return d
}

// Calculate compares two contexts and returns the weighted score plus the
// fields that individually cleared their match thresholds. Only fields
// present in both contexts participate; the weighted average renormalizes
// over the weights of the fields actually compared.
func Calculate(current, past Context) Result {
	var weightedSum, totalWeight float64
	var matched []string

	// Fixed field order keeps both the summation order and the
	// MatchedFields order deterministic.
	if current.Domain != "" && past.Domain != "" {
		score := DomainSimilarity(current.Domain, past.Domain)
		weightedSum += score * domainWeight
		totalWeight += domainWeight
		if score >= domainMatchThreshold {
			matched = append(matched, "domain")
		}
	}
	if current.CompanyName != "" && past.CompanyName != "" {
		score := StringSimilarity(current.CompanyName, past.CompanyName)
		weightedSum += score * companyWeight
		totalWeight += companyWeight
		if score >= nameMatchThreshold {
			matched = append(matched, "company_name")
		}
	}
	if current.ContactName != "" && past.ContactName != "" {
		score := StringSimilarity(current.ContactName, past.ContactName)
		weightedSum += score * contactWeight
		totalWeight += contactWeight
		if score >= nameMatchThreshold {
			matched = append(matched, "contact_name")
		}
	}

	if totalWeight == 0 {
		return Result{Score: 0}
	}
	return Result{Score: weightedSum / totalWeight, MatchedFields: matched}
}

// ShouldWarn reports whether a past action is similar enough to the current
// one to surface an advisory: an exact entity identity match always warns,
// otherwise the weighted score must exceed the global warning threshold.
func ShouldWarn(current, past Context) bool {
	if current.EntityID != "" && current.EntityID == past.EntityID {
		return true
	}
	return Calculate(current, past).Score > WarnThreshold
}
