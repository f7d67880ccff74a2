// Package export assembles legal evidence bundles for cross-jurisdiction
// disclosure. Every evidence item passes an export compliance check; items
// failing it are excluded from the bundle with the reason recorded in the
// manifest.
package export

import (
	"context"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/jurisdiction"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// ComplianceChecker runs the per-item export check. Satisfied by
// *jurisdiction.Router.
type ComplianceChecker interface {
	CheckEvidenceExportCompliance(ctx context.Context, evidenceID id.EvidenceID, targetJurisdiction, exportType string) (*jurisdiction.ExportCompliance, error)
}

// CaseSource reads the case and evidence records the bundle covers.
type CaseSource interface {
	GetCase(ctx context.Context, caseID id.CaseID) (*casefile.Case, error)
	ListEvidence(ctx context.Context, caseID id.CaseID) ([]*casefile.Evidence, error)
}

// Renderer turns a manifest into a downloadable document. The binary layout
// is the renderer's concern; the service only hands it the manifest.
type Renderer interface {
	Render(ctx context.Context, manifest *Manifest) ([]byte, error)
}

// AuditPublisher receives bundle export audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// BundleItem is one evidence record admitted into the bundle.
type BundleItem struct {
	EvidenceID     id.EvidenceID `json:"evidenceId"`
	Title          string        `json:"title"`
	Kind           string        `json:"kind"`
	Classification string        `json:"classification"`
	Hash           string        `json:"hash"`
	Restrictions   []string      `json:"restrictions"`
	Requirements   []string      `json:"requirements"`
}

// ExcludedItem is an evidence record the compliance check kept out.
type ExcludedItem struct {
	EvidenceID id.EvidenceID `json:"evidenceId"`
	Title      string        `json:"title"`
	Reason     string        `json:"reason"`
}

// Manifest lists the bundle's contents and exclusions. It is part of the
// exported artifact and of the audit trail.
type Manifest struct {
	CaseID             id.CaseID      `json:"caseId"`
	CaseTitle          string         `json:"caseTitle"`
	SourceJurisdiction string         `json:"sourceJurisdiction"`
	TargetJurisdiction string         `json:"targetJurisdiction"`
	ExportType         string         `json:"exportType"`
	RequestedBy        id.UserID      `json:"requestedBy"`
	Items              []BundleItem   `json:"items"`
	Excluded           []ExcludedItem `json:"excluded"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}

// Bundle is the rendered artifact plus its manifest.
type Bundle struct {
	Manifest *Manifest `json:"manifest"`
	Document []byte    `json:"document,omitempty"`
}

// Service builds export bundles.
type Service struct {
	cases    CaseSource
	checker  ComplianceChecker
	renderer Renderer
	auditor  AuditPublisher
	logger   *slog.Logger
	clock    func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceClock overrides the time source for deterministic testing.
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// NewService creates an export service with required dependencies.
// Panics if any required dependency is nil - fail fast at startup.
func NewService(cases CaseSource, checker ComplianceChecker, renderer Renderer, auditor AuditPublisher, opts ...ServiceOption) *Service {
	if cases == nil {
		panic("export.NewService: case source is required")
	}
	if checker == nil {
		panic("export.NewService: compliance checker is required")
	}
	if renderer == nil {
		panic("export.NewService: renderer is required")
	}
	if auditor == nil {
		panic("export.NewService: auditor is required for compliance audit trail")
	}
	s := &Service{
		cases:    cases,
		checker:  checker,
		renderer: renderer,
		auditor:  auditor,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildBundle assembles and renders the export bundle for a case.
//
// Each evidence item is checked independently; a disallowed item is excluded
// with its reason rather than failing the whole bundle. A failed check (as
// opposed to a disallowed one) aborts: the bundle cannot be soundly built
// with unverified items. An empty bundle is still rendered so the requester
// receives the exclusion manifest.
func (s *Service) BuildBundle(ctx context.Context, caseID id.CaseID, targetJurisdiction, exportType string, requestedBy id.UserID) (*Bundle, error) {
	if targetJurisdiction == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "target jurisdiction is required")
	}
	if exportType == "" {
		exportType = "STANDARD_EXPORT"
	}

	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	items, err := s.cases.ListEvidence(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list evidence for export")
	}

	manifest := &Manifest{
		CaseID:             c.ID,
		CaseTitle:          c.Title,
		SourceJurisdiction: c.Jurisdiction,
		TargetJurisdiction: targetJurisdiction,
		ExportType:         exportType,
		RequestedBy:        requestedBy,
		Items:              []BundleItem{},
		Excluded:           []ExcludedItem{},
		GeneratedAt:        s.clock(),
	}

	for _, e := range items {
		check, err := s.checker.CheckEvidenceExportCompliance(ctx, e.ID, targetJurisdiction, exportType)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check export compliance")
		}
		if !check.Allowed {
			manifest.Excluded = append(manifest.Excluded, ExcludedItem{
				EvidenceID: e.ID,
				Title:      e.Title,
				Reason:     check.Reason,
			})
			continue
		}
		manifest.Items = append(manifest.Items, BundleItem{
			EvidenceID:     e.ID,
			Title:          e.Title,
			Kind:           e.Kind,
			Classification: e.Classification,
			Hash:           e.Hash,
			Restrictions:   check.Restrictions,
			Requirements:   check.Requirements,
		})
	}

	doc, err := s.renderer.Render(ctx, manifest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "render export bundle")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:    manifest.GeneratedAt,
		ActorID:      requestedBy.String(),
		CaseID:       c.ID.String(),
		Action:       string(audit.EventBundleExported),
		Jurisdiction: targetJurisdiction,
		Reason:       exportType,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit bundle export audit event",
			"case_id", c.ID,
			"error", err,
		)
	}
	return &Bundle{Manifest: manifest, Document: doc}, nil
}
