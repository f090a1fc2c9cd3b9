package policy

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed policies/default.yaml
var embeddedPolicies embed.FS

// PolicySet is the currently published set of personas. Loaded once and
// treated as an immutable snapshot: a running evaluation holds the resolver
// built from one set and is never affected by a later reload.
type PolicySet struct {
	Version  int        `yaml:"version"`
	Personas []*Persona `yaml:"personas"`
}

// Validate checks every persona in the set and rejects duplicate
// (vertical, sub_vertical, region) combinations.
func (s *PolicySet) Validate() error {
	if len(s.Personas) == 0 {
		return fmt.Errorf("policy set contains no personas")
	}
	seen := make(map[string]string, len(s.Personas))
	for _, p := range s.Personas {
		if err := p.Validate(); err != nil {
			return err
		}
		key := comboKey(p.Vertical, p.SubVertical, p.Region)
		if other, ok := seen[key]; ok {
			return fmt.Errorf("personas %s and %s both claim %s", other, p.PersonaKey, key)
		}
		seen[key] = p.PersonaKey
	}
	return nil
}

// LoadEmbedded loads the policy set compiled into the binary
func LoadEmbedded() (*PolicySet, error) {
	content, err := embeddedPolicies.ReadFile("policies/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded policy set: %w", err)
	}
	return parsePolicySet(content)
}

// LoadFile loads a policy set from an operator-supplied YAML file
func LoadFile(path string) (*PolicySet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return parsePolicySet(content)
}

func parsePolicySet(content []byte) (*PolicySet, error) {
	var set PolicySet
	if err := yaml.Unmarshal(content, &set); err != nil {
		return nil, fmt.Errorf("failed to parse policy set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy set: %w", err)
	}
	return &set, nil
}
