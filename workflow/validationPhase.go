package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftforge/contentflow_backend/aiclient"
	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
)

func errMissingDraft(generationId int) error {
	return fmt.Errorf("generation %d has no draft artifact", generationId)
}

// runValidationPhase fact-checks the draft with a hard time budget. The
// phase is non-critical: when the budget expires, the result is recorded
// as "no issues found" and the pipeline moves on.
func (o *Orchestrator) runValidationPhase(ctx context.Context, record *models.GenerationRecord) (bool, error) {
	draft, ok, err := getArtifact[draftArtifact](record, PhaseWrite)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errMissingDraft(record.ID)
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusValidating, PhaseValidation, progressValidating); err != nil {
		return false, err
	}

	validateCtx, cancel := context.WithTimeout(ctx, o.ValidationTimeout)
	defer cancel()

	result, err := o.Gen.Validate(validateCtx, draft.Markdown)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			config.LogError(o.Logger, "workflow", "runValidationPhase", "timeout, degrading to no issues", record.ID, err)
			result = &aiclient.ValidationResult{}
		} else {
			return false, err
		}
	}

	raw, err := putArtifact(record, PhaseValidation, result)
	if err != nil {
		return false, err
	}
	return false, models.MergeGenerationArtifact(ctx, record.ID, PhaseValidation, raw)
}
