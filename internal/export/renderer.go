package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// ManifestRenderer renders the bundle as a human-readable cover sheet
// followed by the JSON manifest. It stands in for richer document formats;
// swapping in a PDF renderer only requires implementing Renderer.
type ManifestRenderer struct{}

func NewManifestRenderer() *ManifestRenderer {
	return &ManifestRenderer{}
}

func (r *ManifestRenderer) Render(_ context.Context, manifest *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "LEGAL EVIDENCE BUNDLE\n")
	fmt.Fprintf(&buf, "Case: %s (%s)\n", manifest.CaseTitle, manifest.CaseID)
	fmt.Fprintf(&buf, "Transfer: %s -> %s (%s)\n",
		manifest.SourceJurisdiction, manifest.TargetJurisdiction, manifest.ExportType)
	fmt.Fprintf(&buf, "Items included: %d, excluded: %d\n\n",
		len(manifest.Items), len(manifest.Excluded))

	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
