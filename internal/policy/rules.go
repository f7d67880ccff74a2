package policy

import (
	"fmt"
)

// evaluateRule applies a single rule with fail-closed panic conversion. A
// misbehaving rule denies access rather than crashing the evaluation.
func evaluateRule(rule Rule, attrs *AttributeBundle) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Deny(fmt.Sprintf("Rule evaluation failed: %v", r))
		}
	}()
	return rule.Evaluate(attrs)
}

// TimeBasedRule denies access outside the inclusive [StartHour, EndHour]
// window. It reads the current hour from the "time" attribute provider; a
// missing or malformed attribute counts as outside the window.
type TimeBasedRule struct {
	StartHour int
	EndHour   int
}

func (r TimeBasedRule) Name() string { return "time_based" }

func (r TimeBasedRule) Evaluate(attrs *AttributeBundle) Decision {
	window := fmt.Sprintf("%d-%d", r.StartHour, r.EndHour)
	timeAttrs := attrs.Provider("time")
	hour, ok := timeAttrs["currentHour"].(int)
	if !ok {
		return Deny(fmt.Sprintf("Access outside allowed hours %s: current hour unknown", window))
	}
	if hour < r.StartHour || hour > r.EndHour {
		return Deny(fmt.Sprintf("Access outside allowed hours %s", window))
	}
	return Allow()
}

// JurisdictionRule denies any access where the user's and resource's
// jurisdictions differ. It is a blunt instrument for policies whose resource
// types never legitimately cross borders; do not attach it to resource types
// mediated by the cross-jurisdiction router, which exists to permit such
// flows under approvals and restrictions.
type JurisdictionRule struct{}

func (JurisdictionRule) Name() string { return "jurisdiction_match" }

func (JurisdictionRule) Evaluate(attrs *AttributeBundle) Decision {
	if attrs.User.Jurisdiction != attrs.Resource.Jurisdiction {
		return Deny("Cross-jurisdiction access not permitted")
	}
	return Allow()
}

// IPWhitelistRule denies requests whose source address is not in the
// configured allowlist.
type IPWhitelistRule struct {
	AllowedIPs []string
}

func (r IPWhitelistRule) Name() string { return "ip_whitelist" }

func (r IPWhitelistRule) Evaluate(attrs *AttributeBundle) Decision {
	ip := attrs.Environment.IPAddress
	for _, allowed := range r.AllowedIPs {
		if ip == allowed {
			return Allow()
		}
	}
	return Deny(fmt.Sprintf("IP address %s not in allowlist", ip))
}

// RuleFunc adapts a plain function into a Rule for custom rules.
type RuleFunc struct {
	RuleName string
	Fn       func(attrs *AttributeBundle) Decision
}

func (r RuleFunc) Name() string { return r.RuleName }

func (r RuleFunc) Evaluate(attrs *AttributeBundle) Decision { return r.Fn(attrs) }
