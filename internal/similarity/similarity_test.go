package similarity

import (
	"testing"
)

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
		// exact is false when we only assert a range
		exact   bool
		atLeast float64
		below   float64
	}{
		{name: "identical", a: "Acme Corp", b: "Acme Corp", want: 1, exact: true},
		{name: "identical after case fold", a: "ACME CORP", b: "acme corp", want: 1, exact: true},
		{name: "identical after whitespace collapse", a: "  Acme   Corp ", b: "Acme Corp", want: 1, exact: true},
		{name: "disjoint", a: "Acme", b: "Zenith", want: 0, exact: false, atLeast: 0, below: 0.4},
		{name: "empty left", a: "", b: "Acme", want: 0, exact: true},
		{name: "both empty", a: "", b: "", want: 0, exact: true},
		{name: "shared token", a: "Acme Corp", b: "Acme Inc", exact: false, atLeast: 0.5, below: 1},
		{name: "near edit", a: "Acme Corp", b: "Acme Crop", exact: false, atLeast: 0.7, below: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StringSimilarity(tt.a, tt.b)
			if tt.exact {
				if got != tt.want {
					t.Errorf("StringSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
				}
				return
			}
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("StringSimilarity(%q, %q) = %v, want [%v, %v)", tt.a, tt.b, got, tt.atLeast, tt.below)
			}
		})
	}
}

func TestStringSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Acme Corp", "Acme Inc"},
		{"Globex", "Globex International"},
		{"a", "ab"},
	}
	for _, p := range pairs {
		if StringSimilarity(p[0], p[1]) != StringSimilarity(p[1], p[0]) {
			t.Errorf("StringSimilarity is not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestDomainSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"example.com", "example.com", 1},
		{"www.example.com", "example.com", 1},
		{"WWW.Example.COM", "example.com", 1},
		{"sub.example.com", "example.com", 0.8},
		{"example.com", "sub.example.com", 0.8},
		{"example.com", "other.com", 0},
		{"", "example.com", 0},
		{"notexample.com", "example.com", 0}, // suffix without a dot boundary is not a subdomain
	}
	for _, tt := range tests {
		if got := DomainSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("DomainSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCalculateWeightsDomainAboveName(t *testing.T) {
	domainOnly := Calculate(
		Context{Domain: "example.com", CompanyName: "Acme"},
		Context{Domain: "example.com", CompanyName: "Zenith"},
	)
	nameOnly := Calculate(
		Context{Domain: "example.com", CompanyName: "Acme"},
		Context{Domain: "other.com", CompanyName: "Acme"},
	)
	if domainOnly.Score <= nameOnly.Score {
		t.Errorf("domain match (%.3f) must outweigh name match (%.3f)", domainOnly.Score, nameOnly.Score)
	}
}

func TestCalculateMatchedFields(t *testing.T) {
	result := Calculate(
		Context{Domain: "www.example.com", CompanyName: "Acme Corp", ContactName: "Jo Smith"},
		Context{Domain: "example.com", CompanyName: "Acme Corp", ContactName: "Pat Jones"},
	)
	want := []string{"domain", "company_name"}
	if len(result.MatchedFields) != len(want) {
		t.Fatalf("MatchedFields = %v, want %v", result.MatchedFields, want)
	}
	for i, f := range want {
		if result.MatchedFields[i] != f {
			t.Errorf("MatchedFields[%d] = %s, want %s", i, result.MatchedFields[i], f)
		}
	}
}

func TestCalculateOnlySharedFields(t *testing.T) {
	// Domain present only on one side: excluded from the average entirely
	result := Calculate(
		Context{Domain: "example.com", CompanyName: "Acme"},
		Context{CompanyName: "Acme"},
	)
	if result.Score != 1 {
		t.Errorf("expected score 1 from the only comparable field, got %v", result.Score)
	}

	empty := Calculate(Context{Domain: "example.com"}, Context{CompanyName: "Acme"})
	if empty.Score != 0 || len(empty.MatchedFields) != 0 {
		t.Errorf("no comparable fields should yield zero result, got %+v", empty)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	current := Context{Domain: "example.com", CompanyName: "Acme Corp", ContactName: "Jo Smith"}
	past := Context{Domain: "sub.example.com", CompanyName: "Acme Inc", ContactName: "Jo Smith"}

	first := Calculate(current, past)
	for i := 0; i < 10; i++ {
		again := Calculate(current, past)
		if again.Score != first.Score {
			t.Fatalf("score changed across runs: %v != %v", again.Score, first.Score)
		}
		if len(again.MatchedFields) != len(first.MatchedFields) {
			t.Fatalf("matched fields changed across runs: %v != %v", again.MatchedFields, first.MatchedFields)
		}
	}
}

func TestShouldWarn(t *testing.T) {
	tests := []struct {
		name    string
		current Context
		past    Context
		want    bool
	}{
		{
			name:    "exact entity match always warns",
			current: Context{EntityID: "company_123", CompanyName: "Totally Different"},
			past:    Context{EntityID: "company_123", CompanyName: "Acme"},
			want:    true,
		},
		{
			name:    "high similarity warns",
			current: Context{Domain: "example.com", CompanyName: "Acme Corp"},
			past:    Context{Domain: "www.example.com", CompanyName: "Acme Corp"},
			want:    true,
		},
		{
			name:    "low similarity does not warn",
			current: Context{Domain: "example.com", CompanyName: "Acme"},
			past:    Context{Domain: "other.com", CompanyName: "Zenith"},
			want:    false,
		},
		{
			name:    "empty entity ids never match as identity",
			current: Context{CompanyName: "Acme"},
			past:    Context{CompanyName: "Zenith"},
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldWarn(tt.current, tt.past); got != tt.want {
				t.Errorf("ShouldWarn = %v, want %v", got, tt.want)
			}
		})
	}
}
