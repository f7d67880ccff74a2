package httptransport

import (
	enc "encoding/json"
	"net/http"

	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type exportBundleRequest struct {
	CaseID             string `json:"caseId"`
	TargetJurisdiction string `json:"targetJurisdiction"`
	ExportType         string `json:"exportType"`
}

func (h *Handler) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req exportBundleRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	caseID, err := id.ParseCaseID(req.CaseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	bundle, err := h.exports.BuildBundle(r.Context(), caseID, req.TargetJurisdiction, req.ExportType, actor.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, bundle)
}
