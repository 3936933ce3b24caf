package workflow

import (
	"context"

	"github.com/draftforge/contentflow_backend/aiclient"
	"github.com/draftforge/contentflow_backend/models"
)

// runWritePhase turns the research artifact into a structured draft. It
// passes through the outline status first so polling clients see the
// intermediate step.
func (o *Orchestrator) runWritePhase(ctx context.Context, record *models.GenerationRecord, article *models.Article, project *models.Project) (bool, error) {
	research, _, err := getArtifact[aiclient.ResearchResult](record, PhaseResearch)
	if err != nil {
		return false, err
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusOutline, SubPhaseOutline, progressOutline); err != nil {
		return false, err
	}

	req := DraftRequest{
		Topic:           article.Title,
		Keyword:         article.Keyword,
		Tone:            project.Tone,
		TargetWordCount: project.TargetWordCount,
	}
	if research != nil {
		req.ResearchSummary = research.Summary
		req.KeyPoints = research.KeyPoints
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusWriting, PhaseWrite, progressWriting); err != nil {
		return false, err
	}

	result, err := o.Gen.Draft(ctx, req)
	if err != nil {
		return false, err
	}
	draft := draftArtifact{
		Title:           result.Title,
		Outline:         result.Outline,
		Markdown:        result.Markdown,
		MetaDescription: result.MetaDescription,
	}
	raw, err := putArtifact(record, PhaseWrite, draft)
	if err != nil {
		return false, err
	}
	return false, models.MergeGenerationArtifact(ctx, record.ID, PhaseWrite, raw)
}
