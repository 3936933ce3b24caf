package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/sirupsen/logrus"
)

// HandleResearchCompleted resumes a generation waiting on the async
// research service. The lookup requires status researching, so duplicate
// or stale deliveries find nothing and no-op. Returns the record that was
// resumed, or nil when the delivery matched nothing.
func (o *Orchestrator) HandleResearchCompleted(ctx context.Context, runId string) (*models.GenerationRecord, error) {
	record, err := models.FindGenerationByResearchRun(ctx, runId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			// already resumed, superseded or unknown run: nothing to do
			return nil, nil
		}
		return nil, err
	}

	result, err := o.Gen.FetchResearchResult(ctx, runId)
	if err != nil {
		return nil, err
	}
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if err := models.MergeGenerationArtifact(ctx, record.ID, PhaseResearch, resultRaw); err != nil {
		return nil, err
	}
	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusOutline, SubPhaseOutline, progressOutline); err != nil {
		return nil, err
	}

	bgCtx := o.detachContext(ctx, record.WorkspaceId)
	go func() {
		if err := o.ContinueGenerationFromPhase(bgCtx, record.ID, PhaseWrite, nil); err != nil {
			if o.Logger != nil {
				o.Logger.WithFields(logrus.Fields{
					"field":         "workflow",
					"generation_id": record.ID,
				}).Error("resume after research failed: " + err.Error())
			}
		}
	}()
	return record, nil
}

// HandleResearchFailed parks the generation in research_failed, a terminal
// status only an explicit user retry leaves. Duplicate deliveries no-op.
func (o *Orchestrator) HandleResearchFailed(ctx context.Context, runId string, errMsg string) (*models.GenerationRecord, error) {
	record, err := models.FindGenerationByResearchRun(ctx, runId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if errMsg == "" {
		errMsg = "research task failed"
	}
	return record, o.recordGenerationFailure(ctx, record, models.GenerationStatusResearchFailed, errors.New(errMsg))
}
