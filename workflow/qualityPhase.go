package workflow

import (
	"context"

	"github.com/draftforge/contentflow_backend/models"
)

// runQualityControlPhase critiques the draft without changing it; the
// issues feed the remediation step inside the finalize phase.
func (o *Orchestrator) runQualityControlPhase(ctx context.Context, record *models.GenerationRecord) (bool, error) {
	draft, ok, err := getArtifact[draftArtifact](record, PhaseWrite)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errMissingDraft(record.ID)
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusQualityControl, PhaseQualityControl, progressQualityControl); err != nil {
		return false, err
	}

	critique, err := o.Gen.Critique(ctx, draft.Markdown)
	if err != nil {
		return false, err
	}
	raw, err := putArtifact(record, PhaseQualityControl, critique)
	if err != nil {
		return false, err
	}
	return false, models.MergeGenerationArtifact(ctx, record.ID, PhaseQualityControl, raw)
}
