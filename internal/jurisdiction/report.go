package jurisdiction

import (
	"context"
	"fmt"

	dErrors "custodia/pkg/domain-errors"
)

// ComplianceReport aggregates routing, grant, and violation statistics for a
// jurisdiction over a time window into a summary with a derived compliance
// score and ranked recommendations. Aggregate reads are decision-critical
// for the report, so a store failure propagates.
func (r *Router) ComplianceReport(ctx context.Context, jurisdiction string, window TimeRange) (*Report, error) {
	if _, ok := r.registry.Get(jurisdiction); !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown jurisdiction")
	}

	routing, err := r.stats.RoutingStats(ctx, jurisdiction, window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read routing statistics")
	}
	grants, err := r.stats.GrantStats(ctx, jurisdiction, window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read grant statistics")
	}
	violations, err := r.stats.ViolationCount(ctx, jurisdiction, window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read violation count")
	}

	return &Report{
		Jurisdiction:    jurisdiction,
		Window:          window,
		Routing:         routing,
		Grants:          grants,
		Violations:      violations,
		ComplianceScore: complianceScore(violations, routing.Denied, routing.Total),
		Recommendations: buildRecommendations(violations, routing),
		GeneratedAt:     r.clock(),
	}, nil
}

// complianceScore derives the 0-100 health metric:
// 100 minus 10 per violation minus 20 times the denial rate, clamped to
// [0, 100]. A window with no cross-jurisdiction requests has denial rate 0.
func complianceScore(violations, denied, total int) float64 {
	score := 100.0 - 10.0*float64(violations)
	if total > 0 {
		score -= 20.0 * (float64(denied) / float64(total))
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// buildRecommendations ranks follow-ups: violations are always HIGH
// priority; a denial count above 20% of approvals is MEDIUM.
func buildRecommendations(violations int, routing RoutingStats) []Recommendation {
	recs := []Recommendation{}
	if violations > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("Investigate %d data-residency violations recorded in this window", violations),
		})
	}
	if routing.Approved > 0 && float64(routing.Denied) > 0.2*float64(routing.Approved) {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Message:  "Denial rate exceeds 20% of approvals; review permission grants and residency rules",
		})
	}
	return recs
}
