package httptransport

import (
	enc "encoding/json"
	"net/http"
	"time"

	"custodia/internal/policy"
	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	dErrors "custodia/pkg/domain-errors"
)

type evaluateRequest struct {
	User     policy.User        `json:"user"`
	Resource policy.Resource    `json:"resource"`
	Action   string             `json:"action"`
	Env      policy.Environment `json:"environment"`
}

type evaluateResponse struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	PolicyID    string    `json:"policyId,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// handlePolicyEvaluate runs the engine directly for the given request triple.
// An allow is 200, a deny is 403; both carry the decision body so callers can
// distinguish a policy deny from other 403s by the allowed field.
func (h *Handler) handlePolicyEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	if req.Action == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "action is required"))
		return
	}

	env := req.Env
	if env.Timestamp.IsZero() {
		env = envFromRequest(r)
		env.Location = req.Env.Location
		env.Country = req.Env.Country
	}

	result := h.engine.Evaluate(r.Context(), req.User, req.Resource, req.Action, env)
	status := http.StatusOK
	if !result.Allowed {
		status = http.StatusForbidden
	}
	json.WriteJSON(w, status, evaluateResponse{
		Allowed:     result.Allowed,
		Reason:      result.Reason,
		PolicyID:    result.PolicyID,
		EvaluatedAt: result.EvaluatedAt,
	})
}
