package policy

import (
	"fmt"

	"github.com/dealdesk/verdict/internal/types"
)

// Resolver maps (vertical, sub_vertical, region) to a persona. It is a pure
// lookup over the policy set it was built from; it performs no
// entity-specific computation and no partial matching.
type Resolver struct {
	personas map[string]*Persona
}

// NewResolver builds a resolver from a validated policy set
func NewResolver(set *PolicySet) (*Resolver, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	personas := make(map[string]*Persona, len(set.Personas))
	for _, p := range set.Personas {
		personas[comboKey(p.Vertical, p.SubVertical, p.Region)] = p
	}
	return &Resolver{personas: personas}, nil
}

// Resolution is the outcome of a successful persona lookup
type Resolution struct {
	VerticalKey    string  `json:"vertical_key"`
	SubVerticalKey string  `json:"sub_vertical_key"`
	PersonaKey     string  `json:"persona_key"`
	PersonaID      string  `json:"persona_id"`
	PolicyVersion  string  `json:"policy_version"`
	Policy         *Policy `json:"policy"`
}

// Resolve looks up the persona for a (vertical, sub_vertical, region)
// combination. An unconfigured combination fails with
// VERTICAL_NOT_CONFIGURED; there is no default persona and no fallback.
func (r *Resolver) Resolve(vertical, subVertical, region string) (*Resolution, error) {
	persona, ok := r.personas[comboKey(vertical, subVertical, region)]
	if !ok {
		return nil, &types.CodedError{
			Code: types.CodeVerticalNotConfigured,
			Message: fmt.Sprintf("no persona configured for vertical=%s sub_vertical=%s region=%s",
				vertical, subVertical, region),
		}
	}
	return &Resolution{
		VerticalKey:    persona.Vertical,
		SubVerticalKey: persona.SubVertical,
		PersonaKey:     persona.PersonaKey,
		PersonaID:      persona.PersonaID,
		PolicyVersion:  persona.Policy.PolicyVersion,
		Policy:         persona.Policy,
	}, nil
}

func comboKey(vertical, subVertical, region string) string {
	return vertical + "/" + subVertical + "/" + region
}
