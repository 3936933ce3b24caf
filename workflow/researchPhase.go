package workflow

import (
	"context"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/sirupsen/logrus"
)

// runResearchPhase gathers source material for the draft. In sync mode the
// research call happens inline; otherwise the work is handed to the async
// research service and the pipeline stops here until the webhook arrives.
func (o *Orchestrator) runResearchPhase(ctx context.Context, record *models.GenerationRecord, article *models.Article, project *models.Project) (bool, error) {
	if _, ok := record.Artifacts[PhaseResearch]; ok {
		// research already delivered (webhook seed or earlier run)
		return false, nil
	}
	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusResearching, PhaseResearch, progressResearch); err != nil {
		return false, err
	}

	if config.ResearchSyncMode() {
		result, err := o.Gen.Research(ctx, article.Title, article.Keyword)
		if err != nil {
			return false, err
		}
		raw, err := putArtifact(record, PhaseResearch, result)
		if err != nil {
			return false, err
		}
		return false, models.MergeGenerationArtifact(ctx, record.ID, PhaseResearch, raw)
	}

	runId, err := o.Gen.StartResearchTask(ctx, article.Title, article.Keyword, o.ResearchCallbackURL)
	if err != nil {
		return false, err
	}
	if err := models.SetGenerationResearchRun(ctx, record.ID, runId); err != nil {
		return false, err
	}
	if o.Logger != nil {
		o.Logger.WithFields(logrus.Fields{
			"field":           "workflow",
			"generation_id":   record.ID,
			"research_run_id": runId,
		}).Info("research handed off, awaiting webhook")
	}
	return true, nil
}
