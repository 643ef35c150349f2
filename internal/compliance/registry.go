package compliance

import "fmt"

// ArtifactType names one kind of compliance document.
type ArtifactType string

const (
	IdentityFront       ArtifactType = "identity-front"
	IdentityBack        ArtifactType = "identity-back"
	DriversLicenseFront ArtifactType = "drivers-license-front"
	DriversLicenseBack  ArtifactType = "drivers-license-back"
	CriminalRecord      ArtifactType = "criminal-record"
	ProfilePhoto        ArtifactType = "profile-photo"
)

// Variant describes how an artifact type relates to other types.
type Variant int

const (
	Single Variant = iota
	PairedFront
	PairedBack
)

func (v Variant) String() string {
	switch v {
	case PairedFront:
		return "paired-front"
	case PairedBack:
		return "paired-back"
	}
	return "single"
}

// Rule is the static descriptor of an artifact type.
type Rule struct {
	Type       ArtifactType
	Variant    Variant
	Pair       ArtifactType
	Verifiable bool
	Required   bool
}

// Requirement is one entry of an eligibility check: an artifact type or one of
// the synthetic informational requirements.
type Requirement string

const (
	RequirementBank    Requirement = "bank"
	RequirementCompany Requirement = "company"
)

// Registry is the read-only catalog of artifact types. The zero value is not
// usable; use DefaultRegistry or NewRegistry.
type Registry struct {
	rules []Rule
	index map[ArtifactType]int
}

// NewRegistry builds a registry from rules in declaration order. Paired rules
// must reference each other with opposite variants.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{rules: make([]Rule, 0, len(rules)), index: make(map[ArtifactType]int, len(rules))}
	for _, rule := range rules {
		if rule.Type == "" {
			return nil, fmt.Errorf("registry: empty artifact type")
		}
		if _, dup := r.index[rule.Type]; dup {
			return nil, fmt.Errorf("registry: duplicate artifact type %q", rule.Type)
		}
		r.index[rule.Type] = len(r.rules)
		r.rules = append(r.rules, rule)
	}
	for _, rule := range r.rules {
		if rule.Variant == Single {
			continue
		}
		other, ok := r.rule(rule.Pair)
		if !ok || other.Pair != rule.Type || other.Variant == rule.Variant || other.Variant == Single {
			return nil, fmt.Errorf("registry: %q has no matching pair", rule.Type)
		}
		if other.Required != rule.Required || other.Verifiable != rule.Verifiable {
			return nil, fmt.Errorf("registry: pair %q/%q disagrees on rules", rule.Type, other.Type)
		}
	}
	return r, nil
}

var defaultRegistry = mustRegistry(
	Rule{Type: IdentityFront, Variant: PairedFront, Pair: IdentityBack, Verifiable: true, Required: true},
	Rule{Type: IdentityBack, Variant: PairedBack, Pair: IdentityFront, Verifiable: true, Required: true},
	Rule{Type: DriversLicenseFront, Variant: PairedFront, Pair: DriversLicenseBack, Verifiable: true, Required: true},
	Rule{Type: DriversLicenseBack, Variant: PairedBack, Pair: DriversLicenseFront, Verifiable: true, Required: true},
	Rule{Type: CriminalRecord, Variant: Single, Verifiable: true, Required: true},
	Rule{Type: ProfilePhoto, Variant: Single},
)

// DefaultRegistry returns the catalog of artifact types drivers submit.
func DefaultRegistry() *Registry { return defaultRegistry }

func mustRegistry(rules ...Rule) *Registry {
	r, err := NewRegistry(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) rule(t ArtifactType) (Rule, bool) {
	i, ok := r.index[t]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Rule returns the descriptor for t.
func (r *Registry) Rule(t ArtifactType) (Rule, bool) { return r.rule(t) }

// Parse validates a raw artifact type name.
func (r *Registry) Parse(raw string) (ArtifactType, error) {
	t := ArtifactType(raw)
	if _, ok := r.index[t]; !ok {
		return "", fmt.Errorf("%w: unknown artifact type %q", ErrValidation, raw)
	}
	return t, nil
}

// Types returns every artifact type in declaration order.
func (r *Registry) Types() []ArtifactType {
	out := make([]ArtifactType, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Type
	}
	return out
}

func (r *Registry) IsVerifiable(t ArtifactType) bool {
	rule, ok := r.rule(t)
	return ok && rule.Verifiable
}

// PairOf returns the other side of a two-sided document.
func (r *Registry) PairOf(t ArtifactType) (ArtifactType, bool) {
	rule, ok := r.rule(t)
	if !ok || rule.Variant == Single {
		return "", false
	}
	return rule.Pair, true
}

// RequiredForEligibility returns the artifact types that gate eligibility in
// declaration order.
func (r *Registry) RequiredForEligibility() []ArtifactType {
	out := make([]ArtifactType, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Required {
			out = append(out, rule.Type)
		}
	}
	return out
}

// Requirements returns the full eligibility checklist: required artifact types
// followed by the bank and company requirements.
func (r *Registry) Requirements() []Requirement {
	types := r.RequiredForEligibility()
	out := make([]Requirement, 0, len(types)+2)
	for _, t := range types {
		out = append(out, Requirement(t))
	}
	return append(out, RequirementBank, RequirementCompany)
}
