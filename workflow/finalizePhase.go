package workflow

import (
	"context"
	"fmt"

	"github.com/draftforge/contentflow_backend/aiclient"
	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/seo"
	"github.com/draftforge/contentflow_backend/utils"
)

// runFinalizePhase applies quality-control and validation corrections,
// audits the result against the SEO checklist (remediating and re-auditing
// while required checks fail), and picks a cover image. The audit gates
// completion; image selection is best-effort.
func (o *Orchestrator) runFinalizePhase(ctx context.Context, record *models.GenerationRecord, article *models.Article, project *models.Project) (bool, error) {
	draft, ok, err := getArtifact[draftArtifact](record, PhaseWrite)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errMissingDraft(record.ID)
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusUpdating, SubPhaseRemediation, progressUpdating); err != nil {
		return false, err
	}

	corrections := collectCorrections(record)
	if len(corrections) > 0 {
		if err := o.remediate(ctx, record, draft, draft.MetaDescription, corrections); err != nil {
			return false, err
		}
	}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusUpdating, PhaseFinalize, progressSeoAudit); err != nil {
		return false, err
	}

	thresholds := seo.Thresholds{MinWords: minWordsFor(project)}
	report := o.auditDraft(draft, article, project, thresholds)
	rounds := 0
	for !report.Passed() && !config.SeoGateDisabled() && rounds < o.MaxRemediationRounds {
		rounds++
		var fixes []string
		for _, f := range report.RequiredFailures() {
			fixes = append(fixes, f.Message)
		}
		if err := o.remediate(ctx, record, draft, draft.MetaDescription, fixes); err != nil {
			return false, err
		}
		report = o.auditDraft(draft, article, project, thresholds)
	}
	if !report.Passed() && !config.SeoGateDisabled() {
		return false, fmt.Errorf("seo quality gate still failing after %d remediation rounds: %v", rounds, failureCodes(report))
	}

	result := finalizeArtifact{Report: report, RemediationRounds: rounds}

	if _, err := models.AdvanceGenerationPhase(ctx, record.ID, models.GenerationStatusUpdating, SubPhaseImageSelection, progressImageSelection); err != nil {
		return false, err
	}
	if coverURL := o.selectCoverImage(ctx, record, article); coverURL != "" {
		result.CoverImageURL = coverURL
	}

	raw, err := putArtifact(record, PhaseFinalize, result)
	if err != nil {
		return false, err
	}
	return false, models.MergeGenerationArtifact(ctx, record.ID, PhaseFinalize, raw)
}

// remediate rewrites the draft through the content-rewriting operation and
// persists the updated draft artifact.
func (o *Orchestrator) remediate(ctx context.Context, record *models.GenerationRecord, draft *draftArtifact, metaDescription string, corrections []string) error {
	rewritten, err := o.Gen.Rewrite(ctx, draft.Markdown, metaDescription, corrections)
	if err != nil {
		return err
	}
	if rewritten.Markdown != "" {
		draft.Markdown = rewritten.Markdown
	}
	if rewritten.MetaDescription != "" {
		draft.MetaDescription = rewritten.MetaDescription
	}
	raw, err := putArtifact(record, PhaseWrite, *draft)
	if err != nil {
		return err
	}
	return models.MergeGenerationArtifact(ctx, record.ID, PhaseWrite, raw)
}

func (o *Orchestrator) auditDraft(draft *draftArtifact, article *models.Article, project *models.Project, thresholds seo.Thresholds) seo.Report {
	return seo.Audit(seo.Draft{
		Title:           draft.Title,
		Markdown:        draft.Markdown,
		MetaDescription: draft.MetaDescription,
		Keyword:         article.Keyword,
		BaseURL:         project.BaseURL,
	}, thresholds)
}

// selectCoverImage finds, stores and resizes a cover image. Any failure is
// logged and swallowed: the article completes without a cover.
func (o *Orchestrator) selectCoverImage(ctx context.Context, record *models.GenerationRecord, article *models.Article) string {
	query := article.Keyword
	if query == "" {
		query = article.Title
	}
	image, err := o.Gen.FindCoverImage(ctx, query)
	if err != nil {
		config.LogError(o.Logger, "workflow", "selectCoverImage", "search", record.ID, err)
		return ""
	}
	objectName := fmt.Sprintf("covers/%d/%s.jpg", article.ID, utils.GenerateUniqueFilename())
	storedURL, err := utils.FetchAndStoreCoverImage(ctx, image.URL, objectName)
	if err != nil {
		config.LogError(o.Logger, "workflow", "selectCoverImage", "store", record.ID, err)
		return ""
	}
	return storedURL
}

// collectCorrections flattens quality-control and validation issues into
// one correction list for the rewriting operation.
func collectCorrections(record *models.GenerationRecord) []string {
	var corrections []string
	if critique, ok, err := getArtifact[aiclient.CritiqueResult](record, PhaseQualityControl); err == nil && ok {
		for _, issue := range critique.Issues {
			text := issue.Message
			if issue.Suggestion != "" {
				text += " (" + issue.Suggestion + ")"
			}
			corrections = append(corrections, text)
		}
	}
	if validation, ok, err := getArtifact[aiclient.ValidationResult](record, PhaseValidation); err == nil && ok {
		for _, issue := range validation.Issues {
			text := issue.Problem
			if issue.Correction != "" {
				text += " (" + issue.Correction + ")"
			}
			corrections = append(corrections, text)
		}
	}
	return corrections
}

func failureCodes(report seo.Report) []string {
	var codes []string
	for _, f := range report.RequiredFailures() {
		codes = append(codes, f.Code)
	}
	return codes
}

// minWordsFor derives the audit length floor from the project's target,
// leaving slack so a slightly short draft does not loop remediation.
func minWordsFor(project *models.Project) int {
	if project.TargetWordCount <= 0 {
		return 0
	}
	minWords := project.TargetWordCount / 2
	if minWords < 300 {
		minWords = 300
	}
	return minWords
}
