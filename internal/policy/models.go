// Package policy implements the hybrid RBAC/ABAC decision engine. Policies
// hold ordered rule chains; the engine gathers contextual attributes from
// registered providers and evaluates every applicable policy, failing closed
// on the first deny.
package policy

import (
	"time"
)

// Effect enumerates rule and policy outcomes.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Decision is the outcome of a single rule or policy evaluation.
type Decision struct {
	Effect Effect
	Reason string
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Effect: EffectAllow} }

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision { return Decision{Effect: EffectDeny, Reason: reason} }

// Denied reports whether the decision denies access.
func (d Decision) Denied() bool { return d.Effect == EffectDeny }

// Rule is a pure predicate over an attribute bundle. Implementations must be
// side-effect free; the same bundle must always yield the same decision.
type Rule interface {
	Name() string
	Evaluate(attrs *AttributeBundle) Decision
}

// User carries the requesting subject's identity attributes.
type User struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	Department     string `json:"department"`
	Jurisdiction   string `json:"jurisdiction"`
	ClearanceLevel int    `json:"clearanceLevel"`
}

// Resource identifies the object a decision is about.
type Resource struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Sensitivity  string `json:"sensitivity"`
	Jurisdiction string `json:"jurisdiction"`
	CaseType     string `json:"caseType"`
}

// Environment captures per-request context supplied by the API layer.
type Environment struct {
	Timestamp         time.Time `json:"timestamp"`
	IPAddress         string    `json:"ipAddress"`
	UserAgent         string    `json:"userAgent"`
	Location          string    `json:"location"`
	Country           string    `json:"country"`
	Region            string    `json:"region"`
	IsVPN             bool      `json:"isVPN"`
	DeviceFingerprint string    `json:"deviceFingerprint"`
}

// AttributeBundle is the full attribute set for one decision. It is built
// fresh per evaluation and never mutated afterwards; rules only read it.
type AttributeBundle struct {
	User        User
	Resource    Resource
	Environment Environment
	// Providers holds one sub-map per registered attribute provider,
	// keyed by provider name. A provider that failed is absent.
	Providers map[string]map[string]any
}

// Provider returns the named provider's contribution, or nil if the provider
// failed or was never registered. Rules that depend on a provider must decide
// how to treat a nil map (the built-in rules fail closed).
func (b *AttributeBundle) Provider(name string) map[string]any {
	if b == nil {
		return nil
	}
	return b.Providers[name]
}

// Conditions is a policy applicability filter. An empty dimension matches
// every value of that dimension.
type Conditions struct {
	Roles         []string
	ResourceTypes []string
	Actions       []string
}

// Applies reports whether a policy with these conditions is relevant to the
// concrete (role, resourceType, action) triple.
func (c Conditions) Applies(role, resourceType, action string) bool {
	return matchDimension(c.Roles, role) &&
		matchDimension(c.ResourceTypes, resourceType) &&
		matchDimension(c.Actions, action)
}

func matchDimension(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

// Policy is an ordered rule chain with an applicability filter.
type Policy struct {
	ID         string
	Name       string
	Rules      []Rule
	Conditions Conditions
}

// Evaluate runs the policy's rules in order. The first deny short-circuits;
// rules after it are not invoked. A rule that panics is converted to a deny
// at the rule boundary, so evaluation itself never panics.
func (p *Policy) Evaluate(attrs *AttributeBundle) Decision {
	for _, rule := range p.Rules {
		if d := evaluateRule(rule, attrs); d.Denied() {
			return d
		}
	}
	return Allow()
}
