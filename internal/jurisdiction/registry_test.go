package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry()
}

func (s *RegistrySuite) TestDefaultJurisdictions() {
	for _, code := range []string{"IN", "EU", "US", "GLOBAL"} {
		j, ok := s.registry.Get(code)
		s.True(ok, code)
		s.Equal(code, j.Code)

		_, ok = s.registry.Rule(code)
		s.True(ok, code)
	}

	_, ok := s.registry.Get("ATLANTIS")
	s.False(ok)
}

func (s *RegistrySuite) TestStrictTierInvariant() {
	in, _ := s.registry.Get("IN")
	s.Equal(ResidencyStrict, in.DataResidency)
	inRule, _ := s.registry.Rule("IN")
	s.False(inRule.CrossBorderTransfer)

	eu, _ := s.registry.Get("EU")
	s.Equal(ResidencyStrict, eu.DataResidency)
	euRule, _ := s.registry.Rule("EU")
	s.True(euRule.CrossBorderTransfer)
	s.NotEmpty(euRule.TransferConditions, "a STRICT jurisdiction allowing transfer declares conditions")
}

func (s *RegistrySuite) TestRestrictedPairsAreSymmetric() {
	s.True(s.registry.Restricted("IN", "US"))
	s.True(s.registry.Restricted("US", "IN"))
	s.True(s.registry.Restricted("EU", "US"))
	s.True(s.registry.Restricted("IN", "EU"))
	s.False(s.registry.Restricted("EU", "GLOBAL"))
}

func (s *RegistrySuite) TestUnknownConditionNeverSatisfied() {
	s.True(s.registry.ConditionSatisfied("GDPR_ADEQUACY_DECISION"))
	s.False(s.registry.ConditionSatisfied("HANDSHAKE_AGREEMENT"))
	s.False(s.registry.ConditionSatisfied(""))
}

func (s *RegistrySuite) TestOverridesReplaceDefaults() {
	registry := NewRegistry(
		WithJurisdictions([]Jurisdiction{{Code: "UK", Name: "United Kingdom"}}),
		WithRestrictedPairs([][2]string{{"UK", "US"}}),
		WithConditionChecker(StaticConditionChecker{"UK_ADEQUACY": true}),
	)

	_, ok := registry.Get("EU")
	s.False(ok, "overriding the table drops the defaults")
	_, ok = registry.Get("UK")
	s.True(ok)

	s.True(registry.Restricted("US", "UK"))
	s.False(registry.Restricted("IN", "US"))
	s.True(registry.ConditionSatisfied("UK_ADEQUACY"))
	s.False(registry.ConditionSatisfied("GDPR_ADEQUACY_DECISION"))
}
