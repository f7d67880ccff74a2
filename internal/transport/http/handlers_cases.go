package httptransport

import (
	enc "encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/casefile"
	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type createCaseRequest struct {
	Title          string `json:"title"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Classification string `json:"classification"`
	Jurisdiction   string `json:"jurisdiction"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req createCaseRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	c, err := h.cases.CreateCase(r.Context(), actor, casefile.CreateCaseRequest{
		Title:          req.Title,
		Type:           req.Type,
		Priority:       req.Priority,
		Classification: req.Classification,
		Jurisdiction:   req.Jurisdiction,
	}, envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.cases.GetCase(r.Context(), actor, caseID, envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, view)
}

type updateCaseRequest struct {
	Title          string `json:"title"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Classification string `json:"classification"`
	Status         string `json:"status"`
}

func (h *Handler) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateCaseRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	c, err := h.cases.UpdateCase(r.Context(), actor, caseID, casefile.UpdateCaseRequest{
		Title:          req.Title,
		Type:           req.Type,
		Priority:       req.Priority,
		Classification: req.Classification,
		Status:         casefile.CaseStatus(req.Status),
	}, envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cases, err := h.cases.ListCases(r.Context(), actor, r.URL.Query().Get("jurisdiction"), envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if cases == nil {
		cases = []*casefile.Case{}
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

type addEvidenceRequest struct {
	Title          string `json:"title"`
	Kind           string `json:"kind"`
	Classification string `json:"classification"`
	StorageRegion  string `json:"storageRegion"`
	Hash           string `json:"hash"`
}

func (h *Handler) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req addEvidenceRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	e, err := h.cases.AddEvidence(r.Context(), actor, caseID, casefile.AddEvidenceRequest{
		Title:          req.Title,
		Kind:           req.Kind,
		Classification: req.Classification,
		StorageRegion:  req.StorageRegion,
		Hash:           req.Hash,
	}, envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	items, err := h.cases.ListEvidence(r.Context(), actor, caseID, envFromRequest(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if items == nil {
		items = []*casefile.Evidence{}
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"evidence": items})
}
