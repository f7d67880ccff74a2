package httptransport

import (
	"bytes"
	enc "encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/export"
	"custodia/internal/jurisdiction"
	"custodia/internal/platform/health"
	"custodia/internal/platform/middleware"
	"custodia/internal/policy"
	"custodia/internal/user"
)

// HTTPAPISuite exercises the wired router end to end over in-memory stores,
// the same shape the server runs without a DATABASE_URL.
type HTTPAPISuite struct {
	suite.Suite
	server    *httptest.Server
	caseStore *casefile.InMemoryStore
	token     string
}

func TestHTTPAPISuite(t *testing.T) {
	suite.Run(t, new(HTTPAPISuite))
}

func (s *HTTPAPISuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auditStore := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(auditStore)
	s.caseStore = casefile.NewInMemoryStore()

	engine := policy.New(policy.NewProviderRegistry())
	engine.AddPolicy(&policy.Policy{
		ID:   "no-purge",
		Name: "Purge prohibition",
		Rules: []policy.Rule{policy.RuleFunc{
			RuleName: "deny-purge",
			Fn: func(*policy.AttributeBundle) policy.Decision {
				return policy.Deny("Evidence purge requires a retention review")
			},
		}},
		Conditions: policy.Conditions{Actions: []string{"purge"}},
	})

	router := jurisdiction.NewRouter(
		jurisdiction.NewRegistry(),
		jurisdiction.NewMemoryPermissionStore(),
		jurisdiction.NewMemoryGrantStore(),
		casefile.NewEvidenceBridge(s.caseStore),
		jurisdiction.NewMemoryStatsStore(),
		auditor,
	)

	cases := casefile.NewService(s.caseStore, engine, router, auditor)
	exports := export.NewService(s.caseStore, router, export.NewManifestRenderer(), auditor)
	users := user.NewService(user.NewInMemoryStore(), auditor, user.WithBcryptCost(bcrypt.MinCost))
	tokens := middleware.NewHMACValidator("test-signing-key")

	handler := NewHandler(engine, cases, s.caseStore, router, exports, users, tokens, health.New("test"), auditStore, logger)
	s.server = httptest.NewServer(NewRouter(handler, logger, nil, nil, "test-admin-token"))

	s.token = s.registerUser("dana@example.org", "EU")
}

func (s *HTTPAPISuite) TearDownTest() {
	s.server.Close()
}

func (s *HTTPAPISuite) registerUser(email, jurisdiction string) string {
	status, body := s.do(http.MethodPost, "/users/register", "", map[string]any{
		"email":        email,
		"name":         "Dana",
		"password":     "correct horse battery",
		"role":         "investigator",
		"jurisdiction": jurisdiction,
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var resp struct {
		Token string `json:"token"`
	}
	s.Require().NoError(enc.Unmarshal(body, &resp))
	s.Require().NotEmpty(resp.Token)
	return resp.Token
}

func (s *HTTPAPISuite) do(method, path, token string, payload any) (int, []byte) {
	var body io.Reader
	if payload != nil {
		raw, err := enc.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, raw
}

func (s *HTTPAPISuite) createCase(jurisdiction string) string {
	status, body := s.do(http.MethodPost, "/cases", s.token, map[string]any{
		"title":        "Fraud inquiry",
		"type":         "financial",
		"priority":     "normal",
		"jurisdiction": jurisdiction,
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var c struct {
		ID string `json:"id"`
	}
	s.Require().NoError(enc.Unmarshal(body, &c))
	return c.ID
}

func (s *HTTPAPISuite) TestHealthz() {
	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(string(body), `"healthy"`)

	status, _ = s.do(http.MethodGet, "/healthz/ready", "", nil)
	s.Equal(http.StatusOK, status)
}

func (s *HTTPAPISuite) TestAuthRequired() {
	status, _ := s.do(http.MethodPost, "/cases", "", map[string]any{"title": "t"})
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodGet, "/cases", "garbage-token", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *HTTPAPISuite) TestContentTypeEnforced() {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/cases", bytes.NewReader([]byte(`{}`)))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func (s *HTTPAPISuite) TestLogin() {
	status, body := s.do(http.MethodPost, "/users/login", "", map[string]any{
		"email":    "dana@example.org",
		"password": "correct horse battery",
	})
	s.Equal(http.StatusOK, status, string(body))

	status, _ = s.do(http.MethodPost, "/users/login", "", map[string]any{
		"email":    "dana@example.org",
		"password": "wrong",
	})
	s.Equal(http.StatusUnauthorized, status)
}

func (s *HTTPAPISuite) TestPolicyEvaluateAllowAndDeny() {
	status, body := s.do(http.MethodPost, "/policy/evaluate", s.token, map[string]any{
		"user":     map[string]any{"role": "investigator", "jurisdiction": "EU"},
		"resource": map[string]any{"type": "case"},
		"action":   "read",
	})
	s.Equal(http.StatusOK, status, string(body))

	var allow struct {
		Allowed bool `json:"allowed"`
	}
	s.Require().NoError(enc.Unmarshal(body, &allow))
	s.True(allow.Allowed)

	status, body = s.do(http.MethodPost, "/policy/evaluate", s.token, map[string]any{
		"user":     map[string]any{"role": "investigator", "jurisdiction": "EU"},
		"resource": map[string]any{"type": "evidence"},
		"action":   "purge",
	})
	s.Equal(http.StatusForbidden, status)

	var deny struct {
		Allowed  bool   `json:"allowed"`
		Reason   string `json:"reason"`
		PolicyID string `json:"policyId"`
	}
	s.Require().NoError(enc.Unmarshal(body, &deny))
	s.False(deny.Allowed)
	s.Contains(deny.Reason, "retention review")
	s.Equal("no-purge", deny.PolicyID)
}

func (s *HTTPAPISuite) TestCaseLifecycle() {
	caseID := s.createCase("EU")

	status, body := s.do(http.MethodGet, "/cases/"+caseID, s.token, nil)
	s.Require().Equal(http.StatusOK, status, string(body))

	var view struct {
		Case struct {
			Title string `json:"title"`
		} `json:"case"`
		Routing any `json:"routing"`
	}
	s.Require().NoError(enc.Unmarshal(body, &view))
	s.Equal("Fraud inquiry", view.Case.Title)
	s.Nil(view.Routing, "same-jurisdiction reads carry no routing decision")

	status, body = s.do(http.MethodPatch, "/cases/"+caseID, s.token, map[string]any{
		"priority": "critical",
	})
	s.Require().Equal(http.StatusOK, status, string(body))

	status, body = s.do(http.MethodGet, "/cases", s.token, nil)
	s.Require().Equal(http.StatusOK, status)
	var list []enc.RawMessage
	s.Require().NoError(enc.Unmarshal(body, &list))
	s.Len(list, 1)
}

func (s *HTTPAPISuite) TestEvidenceEndpoints() {
	caseID := s.createCase("EU")

	status, body := s.do(http.MethodPost, "/cases/"+caseID+"/evidence", s.token, map[string]any{
		"title": "Server logs",
		"kind":  "digital",
		"hash":  "sha256:abc",
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	status, body = s.do(http.MethodGet, "/cases/"+caseID+"/evidence", s.token, nil)
	s.Require().Equal(http.StatusOK, status)
	var items []enc.RawMessage
	s.Require().NoError(enc.Unmarshal(body, &items))
	s.Len(items, 1)
}

func (s *HTTPAPISuite) TestRoutePreviewForRestrictedPair() {
	// EU requester against a US case with no standing permission.
	caseID := s.createCase("US")

	status, body := s.do(http.MethodPost, "/jurisdiction/route", s.token, map[string]any{
		"caseId": caseID,
	})
	s.Require().Equal(http.StatusOK, status, string(body))

	var decision struct {
		Decision          string   `json:"routingDecision"`
		RequiredApprovals []string `json:"requiredApprovals"`
	}
	s.Require().NoError(enc.Unmarshal(body, &decision))
	s.Equal(string(jurisdiction.OutcomeDenied), decision.Decision)
}

func (s *HTTPAPISuite) TestGrantIssueAndRevoke() {
	caseID := s.createCase("EU")

	status, body := s.do(http.MethodPost, "/jurisdiction/grants", s.token, map[string]any{
		"caseId":             caseID,
		"targetJurisdiction": "US",
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var grant struct {
		ID string `json:"id"`
	}
	s.Require().NoError(enc.Unmarshal(body, &grant))

	status, _ = s.do(http.MethodDelete, "/jurisdiction/grants/"+grant.ID, s.token, map[string]any{
		"reason": "issued in error",
	})
	s.Equal(http.StatusNoContent, status)
}

func (s *HTTPAPISuite) TestComplianceReport() {
	status, body := s.do(http.MethodGet, "/jurisdiction/EU/compliance-report", s.token, nil)
	s.Require().Equal(http.StatusOK, status, string(body))

	var report struct {
		Jurisdiction    string  `json:"jurisdiction"`
		ComplianceScore float64 `json:"complianceScore"`
	}
	s.Require().NoError(enc.Unmarshal(body, &report))
	s.Equal("EU", report.Jurisdiction)
	s.Equal(100.0, report.ComplianceScore)
}

func (s *HTTPAPISuite) TestExportBundle() {
	caseID := s.createCase("EU")
	s.do(http.MethodPost, "/cases/"+caseID+"/evidence", s.token, map[string]any{
		"title": "Server logs",
		"hash":  "sha256:abc",
	})

	status, body := s.do(http.MethodPost, "/export/bundle", s.token, map[string]any{
		"caseId":             caseID,
		"targetJurisdiction": "US",
	})
	s.Require().Equal(http.StatusOK, status, string(body))

	var bundle struct {
		Manifest struct {
			TargetJurisdiction string `json:"targetJurisdiction"`
		} `json:"manifest"`
	}
	s.Require().NoError(enc.Unmarshal(body, &bundle))
	s.Equal("US", bundle.Manifest.TargetJurisdiction)
}

func (s *HTTPAPISuite) doAdmin(method, path string) (int, []byte) {
	req, err := http.NewRequest(method, s.server.URL+path, nil)
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", "test-admin-token")

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, raw
}

func (s *HTTPAPISuite) TestAdminRequiresToken() {
	status, _ := s.do(http.MethodGet, "/admin/policies", "", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *HTTPAPISuite) TestAdminPolicyManagement() {
	status, body := s.doAdmin(http.MethodGet, "/admin/policies")
	s.Require().Equal(http.StatusOK, status)
	s.Contains(string(body), `"no-purge"`)

	status, _ = s.doAdmin(http.MethodDelete, "/admin/policies/no-purge")
	s.Equal(http.StatusNoContent, status)

	status, _ = s.doAdmin(http.MethodDelete, "/admin/policies/no-purge")
	s.Equal(http.StatusNotFound, status)
}

func (s *HTTPAPISuite) TestAdminCaseAuditTrail() {
	caseID := s.createCase("EU")

	status, body := s.doAdmin(http.MethodGet, "/admin/audit/cases/"+caseID)
	s.Require().Equal(http.StatusOK, status, string(body))

	var events []struct {
		Action string `json:"action"`
	}
	s.Require().NoError(enc.Unmarshal(body, &events))
	s.Require().NotEmpty(events)

	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventCaseCreated))
}
