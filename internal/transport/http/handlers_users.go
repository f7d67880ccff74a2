package httptransport

import (
	enc "encoding/json"
	"net/http"
	"time"

	"custodia/internal/platform/middleware"
	"custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	"custodia/internal/user"
	dErrors "custodia/pkg/domain-errors"
)

const tokenTTL = 8 * time.Hour

type registerRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	Department     string `json:"department"`
	Jurisdiction   string `json:"jurisdiction"`
	ClearanceLevel int    `json:"clearanceLevel"`
}

type authResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	u, err := h.users.Register(r.Context(), user.RegisterRequest{
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		Role:           req.Role,
		Department:     req.Department,
		Jurisdiction:   req.Jurisdiction,
		ClearanceLevel: req.ClearanceLevel,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.issueToken(u)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := enc.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.issueToken(u)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (h *Handler) issueToken(u *user.User) (string, error) {
	token, err := h.tokens.IssueToken(middleware.Claims{
		UserID:         u.ID.String(),
		Role:           u.Role,
		Jurisdiction:   u.Jurisdiction,
		Department:     u.Department,
		ClearanceLevel: u.ClearanceLevel,
	}, tokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}
	return token, nil
}
