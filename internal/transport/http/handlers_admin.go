package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit"
	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	dErrors "custodia/pkg/domain-errors"
)

// Admin endpoints are gated by a shared token, not user auth: they are for
// operators, and the policy set and audit trail must stay readable even when
// the user directory is empty.

type policySummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Rules         []string `json:"rules"`
	Roles         []string `json:"roles,omitempty"`
	ResourceTypes []string `json:"resourceTypes,omitempty"`
	Actions       []string `json:"actions,omitempty"`
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.engine.Policies()
	out := make([]policySummary, 0, len(policies))
	for _, p := range policies {
		names := make([]string, 0, len(p.Rules))
		for _, rule := range p.Rules {
			names = append(names, rule.Name())
		}
		out = append(out, policySummary{
			ID:            p.ID,
			Name:          p.Name,
			Rules:         names,
			Roles:         p.Conditions.Roles,
			ResourceTypes: p.Conditions.ResourceTypes,
			Actions:       p.Conditions.Actions,
		})
	}
	json.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRemovePolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")
	if !h.engine.RemovePolicy(policyID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "policy not found"))
		return
	}
	h.logger.Info("policy removed", "policy_id", policyID)
	w.WriteHeader(http.StatusNoContent)
}

type auditEventView struct {
	Timestamp    time.Time `json:"timestamp"`
	ActorID      string    `json:"actorId"`
	CaseID       string    `json:"caseId,omitempty"`
	EvidenceID   string    `json:"evidenceId,omitempty"`
	Action       string    `json:"action"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}

func (h *Handler) handleCaseAuditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.auditLog.ListByCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, auditViews(events))
}

func auditViews(events []audit.Event) []auditEventView {
	out := make([]auditEventView, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventView{
			Timestamp:    e.Timestamp,
			ActorID:      e.ActorID,
			CaseID:       e.CaseID,
			EvidenceID:   e.EvidenceID,
			Action:       e.Action,
			Jurisdiction: e.Jurisdiction,
			Decision:     e.Decision,
			Reason:       e.Reason,
			RequestID:    e.RequestID,
		})
	}
	return out
}

func (h *Handler) handleActorAuditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.auditLog.ListByActor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, auditViews(events))
}
