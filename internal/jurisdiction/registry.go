package jurisdiction

import "strings"

// ConditionChecker reports whether a named transfer condition is satisfied.
// Real deployments back this with a compliance service; the default static
// checker carries the currently certified condition set. An unrecognized
// condition name is never satisfied.
type ConditionChecker interface {
	Satisfied(condition string) bool
}

// StaticConditionChecker is a fixed known-satisfied condition table.
type StaticConditionChecker map[string]bool

func (c StaticConditionChecker) Satisfied(condition string) bool {
	return c[condition]
}

// Registry holds immutable jurisdiction reference data: jurisdictions,
// residency rules, the restricted pair list, and the transfer-condition
// checker. Populated once at construction; never mutated at runtime, so
// concurrent reads need no locking.
type Registry struct {
	jurisdictions   map[string]Jurisdiction
	rules           map[string]ResidencyRule
	restrictedPairs map[string]struct{}
	conditions      ConditionChecker
}

// RegistryOption overrides parts of the default reference tables so
// deployments can load them from configuration instead of compiled-in
// defaults.
type RegistryOption func(*Registry)

// WithJurisdictions replaces the jurisdiction table.
func WithJurisdictions(js []Jurisdiction) RegistryOption {
	return func(r *Registry) {
		r.jurisdictions = make(map[string]Jurisdiction, len(js))
		for _, j := range js {
			r.jurisdictions[j.Code] = j
		}
	}
}

// WithResidencyRules replaces the residency rule table.
func WithResidencyRules(rules map[string]ResidencyRule) RegistryOption {
	return func(r *Registry) {
		r.rules = make(map[string]ResidencyRule, len(rules))
		for code, rule := range rules {
			r.rules[code] = rule
		}
	}
}

// WithRestrictedPairs replaces the restricted jurisdiction pair list. Pairs
// are symmetric: (a,b) and (b,a) are the same pair.
func WithRestrictedPairs(pairs [][2]string) RegistryOption {
	return func(r *Registry) {
		r.restrictedPairs = make(map[string]struct{}, len(pairs))
		for _, p := range pairs {
			r.restrictedPairs[pairKey(p[0], p[1])] = struct{}{}
		}
	}
}

// WithConditionChecker replaces the transfer-condition checker.
func WithConditionChecker(c ConditionChecker) RegistryOption {
	return func(r *Registry) { r.conditions = c }
}

// NewRegistry builds the registry with the default reference tables, then
// applies overrides.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		jurisdictions:   defaultJurisdictions(),
		rules:           defaultResidencyRules(),
		restrictedPairs: defaultRestrictedPairs(),
		conditions:      defaultConditionChecker(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the jurisdiction for the given code.
func (r *Registry) Get(code string) (Jurisdiction, bool) {
	j, ok := r.jurisdictions[code]
	return j, ok
}

// Rule returns the residency rule for the given jurisdiction code.
func (r *Registry) Rule(code string) (ResidencyRule, bool) {
	rule, ok := r.rules[code]
	return rule, ok
}

// Restricted reports whether the unordered jurisdiction pair is on the
// restricted list.
func (r *Registry) Restricted(a, b string) bool {
	_, ok := r.restrictedPairs[pairKey(a, b)]
	return ok
}

// ConditionSatisfied reports whether a named transfer condition is met.
func (r *Registry) ConditionSatisfied(condition string) bool {
	return r.conditions.Satisfied(condition)
}

func pairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

func defaultJurisdictions() map[string]Jurisdiction {
	js := []Jurisdiction{
		{
			Code:           "IN",
			Name:           "India",
			LegalRegions:   []string{"in"},
			DataResidency:  ResidencyStrict,
			StorageRegions: []string{"in-south-1", "in-west-1"},
			Locale:         "en-IN",
		},
		{
			Code:           "EU",
			Name:           "European Union",
			LegalRegions:   []string{"eu", "eea"},
			DataResidency:  ResidencyStrict,
			StorageRegions: []string{"eu-central-1", "eu-west-1"},
			Locale:         "en-GB",
		},
		{
			Code:           "US",
			Name:           "United States",
			LegalRegions:   []string{"us"},
			DataResidency:  ResidencyModerate,
			StorageRegions: []string{"us-east-1", "us-west-2"},
			Locale:         "en-US",
		},
		{
			Code:           "GLOBAL",
			Name:           "Global",
			LegalRegions:   []string{"*"},
			DataResidency:  ResidencyFlexible,
			StorageRegions: []string{"*"},
			Locale:         "en",
		},
	}
	m := make(map[string]Jurisdiction, len(js))
	for _, j := range js {
		m[j.Code] = j
	}
	return m
}

// defaultResidencyRules keeps the STRICT invariant: a STRICT jurisdiction
// either forbids cross-border transfer outright (IN) or declares transfer
// conditions that are each independently auditable (EU).
func defaultResidencyRules() map[string]ResidencyRule {
	return map[string]ResidencyRule{
		"IN": {
			AllowedRegions:        []string{"in-south-1", "in-west-1"},
			CrossBorderTransfer:   false,
			ComplianceRequirement: "IT Act data localization",
		},
		"EU": {
			AllowedRegions:        []string{"eu-central-1", "eu-west-1"},
			CrossBorderTransfer:   true,
			TransferConditions:    []string{"GDPR_ADEQUACY_DECISION", "STANDARD_CONTRACTUAL_CLAUSES"},
			ComplianceRequirement: "GDPR Chapter V",
		},
		"US": {
			AllowedRegions:        []string{"*"},
			CrossBorderTransfer:   true,
			TransferConditions:    []string{"DATA_PROCESSING_AGREEMENT"},
			ComplianceRequirement: "CLOUD Act handling",
		},
		"GLOBAL": {
			AllowedRegions:      []string{"*"},
			CrossBorderTransfer: true,
		},
	}
}

func defaultRestrictedPairs() map[string]struct{} {
	return map[string]struct{}{
		pairKey("IN", "US"): {},
		pairKey("EU", "US"): {},
		pairKey("IN", "EU"): {},
	}
}

func defaultConditionChecker() StaticConditionChecker {
	return StaticConditionChecker{
		"GDPR_ADEQUACY_DECISION":       true,
		"STANDARD_CONTRACTUAL_CLAUSES": true,
		"DATA_PROCESSING_AGREEMENT":    true,
		"BINDING_CORPORATE_RULES":      true,
	}
}
