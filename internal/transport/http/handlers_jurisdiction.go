package httptransport

import (
	enc "encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/jurisdiction"
	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type routeCaseRequest struct {
	CaseID string `json:"caseId"`
}

// handleRouteCase exposes the raw routing decision for a case without
// granting access to the case body. Useful for UIs that preview the
// approvals a cross-border request will need.
func (h *Handler) handleRouteCase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req routeCaseRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	caseID, err := id.ParseCaseID(req.CaseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	c, err := h.caseStore.GetCase(r.Context(), caseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	decision := h.router.RouteCase(r.Context(), c.Ref(), jurisdiction.Requester{
		ID:           actor.ID,
		Role:         actor.Role,
		Jurisdiction: actor.Jurisdiction,
	})
	json.WriteJSON(w, http.StatusOK, decision)
}

type grantAccessRequest struct {
	CaseID             string         `json:"caseId"`
	TargetJurisdiction string         `json:"targetJurisdiction"`
	Conditions         map[string]any `json:"conditions"`
}

func (h *Handler) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req grantAccessRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	caseID, err := id.ParseCaseID(req.CaseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.router.GrantAccess(r.Context(), caseID, req.TargetJurisdiction, actor.ID, req.Conditions)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, grant)
}

type revokeAccessRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	grantID, err := id.ParseGrantID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req revokeAccessRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = enc.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.router.RevokeAccess(r.Context(), grantID, actor.ID, req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	window := jurisdiction.TimeRange{
		From: time.Now().Add(-30 * 24 * time.Hour),
		To:   time.Now(),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed from timestamp"))
			return
		}
		window.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed to timestamp"))
			return
		}
		window.To = t
	}

	report, err := h.router.ComplianceReport(r.Context(), code, window)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, report)
}
