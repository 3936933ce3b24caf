package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Validation sentinels. These are returned before any credit is spent or
// state mutated, and map to 4xx responses at the API layer.
var (
	ErrArticleNotEligible  = errors.New("article is not eligible for generation")
	ErrNotOwner            = errors.New("article does not belong to the caller's workspace")
	ErrInsufficientCredits = models.ErrInsufficientCredits
	ErrUnknownPhase        = errors.New("unknown generation phase")
)

// ClaimResult is the outcome of an atomic claim attempt on an article.
type ClaimResult int

const (
	// Claimed: this caller moved the article to generating.
	Claimed ClaimResult = iota
	// AlreadyClaimed: another caller holds the generation slot.
	AlreadyClaimed
	// InvalidState: the article is in no status that permits generation.
	InvalidState
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "invalid_state"
	}
}

// Orchestrator drives the generation pipeline: claiming, setup, phase
// sequencing and terminal handling.
type Orchestrator struct {
	Gen    Generator
	Logger *logrus.Logger

	// Callback URL passed to the async research service.
	ResearchCallbackURL string
	// Validation phase budget; on expiry the phase degrades to "no issues".
	ValidationTimeout time.Duration
	// How many remediation rounds the gate allows before giving up.
	MaxRemediationRounds int
	// An active record that has gone this long without a write is presumed
	// dead; its article claim can be taken over with forceRegenerate.
	StaleClaimAge time.Duration
}

func NewOrchestrator(gen Generator, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		Gen:                  gen,
		Logger:               logger,
		ValidationTimeout:    90 * time.Second,
		MaxRemediationRounds: 2,
		StaleClaimAge:        15 * time.Minute,
	}
}

// generationAbandoned reports whether a generating article's claim can be
// taken over: no active record backs it, or the record stopped being written
// a full staleness window ago, meaning its pipeline goroutine died with the
// process.
func generationAbandoned(existing *models.GenerationRecord, now time.Time, staleAfter time.Duration) bool {
	if existing == nil {
		return true
	}
	return now.Sub(existing.UpdatedAt) >= staleAfter
}

// ClaimArticleForGeneration atomically moves the article into generating.
// Exactly one of two concurrent callers wins; the loser learns whether the
// article is already being generated or simply not claimable.
func (o *Orchestrator) ClaimArticleForGeneration(ctx context.Context, articleId int) (ClaimResult, error) {
	changed, err := models.TransitionArticleStatus(ctx, nil, articleId, models.ArticleStatusGenerating)
	if err != nil {
		return InvalidState, err
	}
	if changed {
		return Claimed, nil
	}
	article, err := models.GetArticleByID(ctx, articleId)
	if err != nil {
		return InvalidState, err
	}
	if article.Status == models.ArticleStatusGenerating {
		return AlreadyClaimed, nil
	}
	return InvalidState, nil
}

// validateEligibility runs the cheap checks: ownership, article state,
// credit balance. No state is mutated.
func (o *Orchestrator) validateEligibility(ctx context.Context, articleId int) (*models.Article, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, ErrNotOwner
	}
	article, err := models.GetArticleByID(ctx, articleId)
	if err != nil {
		return nil, err
	}
	if article.WorkspaceId != workspaceId {
		return nil, ErrNotOwner
	}
	if !models.CanTransitionArticleStatus(article.Status, models.ArticleStatusGenerating) &&
		article.Status != models.ArticleStatusGenerating {
		return nil, ErrArticleNotEligible
	}
	enough, err := models.HasEnoughCredits(ctx, workspaceId, models.GenerationCreditCost)
	if err != nil {
		return nil, err
	}
	if !enough {
		return nil, ErrInsufficientCredits
	}
	return article, nil
}

// ValidateAndSetupGeneration validates the request and, in one transaction,
// deducts the generation cost and creates (or resets) the generation record.
// The article must already be claimed by the caller.
func (o *Orchestrator) ValidateAndSetupGeneration(ctx context.Context, userId int, articleId int, forceRegenerate bool) (*models.GenerationRecord, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, ErrNotOwner
	}
	article, err := models.GetArticleByID(ctx, articleId)
	if err != nil {
		return nil, err
	}
	if article.WorkspaceId != workspaceId {
		return nil, ErrNotOwner
	}

	existing, err := models.GetActiveGenerationForArticle(ctx, nil, articleId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if existing != nil && !forceRegenerate && existing.Status != models.GenerationStatusPending {
		// A pipeline is mid-flight; resetting it without force would orphan it.
		return nil, ErrArticleNotEligible
	}

	var record *models.GenerationRecord
	db := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := models.DeductCredits(ctx, tx, workspaceId, models.GenerationCreditCost,
			fmt.Sprint(articleId), "article generation"); err != nil {
			return err
		}
		record, err = models.CreateOrResetGeneration(ctx, tx, articleId, workspaceId, userId, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// StartGenerationNow is the immediate path: validate, claim, set up and run
// the pipeline in the background. Returns the generation record the caller
// should poll.
func (o *Orchestrator) StartGenerationNow(ctx context.Context, userId int, articleId int, forceRegenerate bool) (*models.GenerationRecord, error) {
	if _, err := o.validateEligibility(ctx, articleId); err != nil {
		return nil, err
	}
	claim, err := o.ClaimArticleForGeneration(ctx, articleId)
	if err != nil {
		return nil, err
	}
	switch claim {
	case AlreadyClaimed:
		existing, err := models.GetActiveGenerationForArticle(ctx, nil, articleId)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if !forceRegenerate || !generationAbandoned(existing, time.Now().UTC(), o.StaleClaimAge) {
			if existing == nil {
				return nil, ErrArticleNotEligible
			}
			return existing, nil
		}
		// Wedged claim: the article says generating but its pipeline stopped
		// writing. Take the claim over; setup below resets the record.
	case InvalidState:
		return nil, ErrArticleNotEligible
	}

	record, err := o.ValidateAndSetupGeneration(ctx, userId, articleId, forceRegenerate)
	if err != nil {
		// release the claim so the article is not stuck in generating
		if _, revertErr := models.TransitionArticleStatus(ctx, nil, articleId, models.ArticleStatusToGenerate); revertErr != nil {
			config.LogError(o.Logger, "workflow", "StartGenerationNow", "revert claim", articleId, revertErr)
		}
		return nil, err
	}

	bgCtx := o.detachContext(ctx, record.WorkspaceId)
	go o.GenerateArticle(bgCtx, record.ID)
	return record, nil
}

// EnqueueGeneration is the deferred path: validate, flip the article to
// queued and insert a queue item for the drainer.
func (o *Orchestrator) EnqueueGeneration(ctx context.Context, userId int, articleId int, scheduledFor time.Time) (*models.GenerationQueueItem, error) {
	article, err := o.validateEligibility(ctx, articleId)
	if err != nil {
		return nil, err
	}
	if article.Status != models.ArticleStatusQueued {
		changed, err := models.TransitionArticleStatus(ctx, nil, articleId, models.ArticleStatusQueued)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, ErrArticleNotEligible
		}
	}
	if scheduledFor.IsZero() {
		scheduledFor = time.Now().UTC()
	}
	return models.EnqueueGenerationItem(ctx, articleId, article.WorkspaceId, userId, scheduledFor)
}

// RetryGeneration is the explicit user action that restarts a failed or
// research_failed generation. A non-terminal record that stopped being
// written a full staleness window ago counts as failed here, so a crashed
// run can be restarted by hand without waiting for the drainer.
func (o *Orchestrator) RetryGeneration(ctx context.Context, userId int, articleId int) (*models.GenerationRecord, error) {
	latest, err := models.GetGenerationForArticle(ctx, articleId)
	if err != nil {
		return nil, err
	}
	if latest.Status == models.GenerationStatusCompleted {
		return nil, ErrArticleNotEligible
	}
	if !latest.Status.IsTerminal() && !generationAbandoned(latest, time.Now().UTC(), o.StaleClaimAge) {
		return nil, ErrArticleNotEligible
	}
	return o.StartGenerationNow(ctx, userId, articleId, true)
}

// GenerateArticle runs the full phase sequence for a pending record. It is
// also safe to call on a record that already advanced: done phases are
// skipped.
func (o *Orchestrator) GenerateArticle(ctx context.Context, generationId int) error {
	if err := models.MarkGenerationStarted(ctx, generationId); err != nil {
		config.LogError(o.Logger, "workflow", "GenerateArticle", "mark started", generationId, err)
	}
	return o.runPipeline(ctx, generationId, 0)
}

// ContinueGenerationFromPhase re-enters the pipeline at the given phase
// after merging the seed artifact. At-least-once safe: a record that is
// terminal or already past the phase is left alone.
func (o *Orchestrator) ContinueGenerationFromPhase(ctx context.Context, generationId int, phase string, seedArtifact []byte) error {
	idx := phaseIndex(phase)
	if idx < 0 {
		return ErrUnknownPhase
	}
	record, err := models.GetGenerationRecord(ctx, generationId)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return nil
	}
	if statusRank[record.Status] > phaseDoneRank[phase] {
		return nil
	}
	if len(seedArtifact) > 0 {
		if err := models.MergeGenerationArtifact(ctx, generationId, phase, seedArtifact); err != nil {
			return err
		}
	}
	return o.runPipeline(ctx, generationId, idx)
}

// runPipeline executes phases from startIdx onward, reloading the record
// between phases so each transition is persisted before the next phase
// runs. A phase returning halt stops the sequence without failing it
// (async handoff); a phase error is terminal.
func (o *Orchestrator) runPipeline(ctx context.Context, generationId int, startIdx int) error {
	for idx := startIdx; idx < len(phaseOrder); idx++ {
		record, err := models.GetGenerationRecord(ctx, generationId)
		if err != nil {
			return err
		}
		if record.Status.IsTerminal() {
			return nil
		}
		phase := phaseOrder[idx]
		if statusRank[record.Status] > phaseDoneRank[phase] {
			continue
		}

		article, err := models.GetArticleByID(ctx, record.ArticleId)
		if err != nil {
			return o.failGeneration(ctx, record, models.GenerationStatusFailed, err)
		}
		project, err := models.GetProjectByID(ctx, article.ProjectId)
		if err != nil {
			return o.failGeneration(ctx, record, models.GenerationStatusFailed, err)
		}

		halt, err := o.runPhase(ctx, phase, record, article, project)
		if err != nil {
			status := models.GenerationStatusFailed
			if phase == PhaseResearch {
				status = models.GenerationStatusResearchFailed
			}
			return o.failGeneration(ctx, record, status, err)
		}
		if halt {
			return nil
		}
	}
	return o.completeGeneration(ctx, generationId)
}

func (o *Orchestrator) runPhase(ctx context.Context, phase string, record *models.GenerationRecord, article *models.Article, project *models.Project) (bool, error) {
	switch phase {
	case PhaseResearch:
		return o.runResearchPhase(ctx, record, article, project)
	case PhaseWrite:
		return o.runWritePhase(ctx, record, article, project)
	case PhaseQualityControl:
		return o.runQualityControlPhase(ctx, record)
	case PhaseValidation:
		return o.runValidationPhase(ctx, record)
	case PhaseFinalize:
		return o.runFinalizePhase(ctx, record, article, project)
	default:
		return false, ErrUnknownPhase
	}
}

// failGeneration records the failure and propagates the cause so pipeline
// callers see why the run stopped.
func (o *Orchestrator) failGeneration(ctx context.Context, record *models.GenerationRecord, status models.GenerationStatus, cause error) error {
	if err := o.recordGenerationFailure(ctx, record, status, cause); err != nil {
		return err
	}
	return cause
}

// recordGenerationFailure marks the record terminal, releases the article
// back to to_generate, refunds runs that died before drafting and emits the
// failure event. Returns nil when the failure was persisted; the cause
// itself is not an error here.
func (o *Orchestrator) recordGenerationFailure(ctx context.Context, record *models.GenerationRecord, status models.GenerationStatus, cause error) error {
	config.LogError(o.Logger, "workflow", "recordGenerationFailure", record.CurrentPhase, record.ID, cause)
	changed, err := models.MarkGenerationFailed(ctx, record.ID, status, cause.Error())
	if err != nil {
		return err
	}
	if !changed {
		// a concurrent failure path already recorded this run as terminal
		return nil
	}
	if _, err := models.TransitionArticleStatus(ctx, nil, record.ArticleId, models.ArticleStatusToGenerate); err != nil {
		config.LogError(o.Logger, "workflow", "recordGenerationFailure", "release article", record.ArticleId, err)
	}
	db := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	if failureIsRefundable(record) {
		if err := models.RefundCredits(ctx, db, record.WorkspaceId, models.GenerationCreditCost,
			fmt.Sprint(record.ArticleId), "generation failed before drafting"); err != nil {
			config.LogError(o.Logger, "workflow", "recordGenerationFailure", "refund", record.ID, err)
		}
	}
	if err := models.PublishToContentEvents(ctx, db, record.WorkspaceId, models.EventTypeGenerationFailed,
		record.ID, models.ReferenceTypeGeneration, map[string]interface{}{
			"article_id": record.ArticleId,
			"status":     status,
			"error":      cause.Error(),
		}); err != nil {
		config.LogError(o.Logger, "workflow", "recordGenerationFailure", "outbox", record.ID, err)
	}
	return nil
}

// completeGeneration copies the final draft onto the article, moves the
// article to wait_for_publish and emits generation.completed, all in one
// transaction with the record's terminal update.
func (o *Orchestrator) completeGeneration(ctx context.Context, generationId int) error {
	record, err := models.GetGenerationRecord(ctx, generationId)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return nil
	}
	final, err := loadFinalDraft(record)
	if err != nil {
		return o.failGeneration(ctx, record, models.GenerationStatusFailed, err)
	}

	db := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	err = db.Transaction(func(tx *gorm.DB) error {
		changed, err := models.MarkGenerationCompleted(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := models.SetArticleContent(ctx, tx, record.ArticleId, final.Markdown,
			final.MetaDescription, final.CoverImageURL, final.WordCount, final.SeoScore); err != nil {
			return err
		}
		if _, err := models.TransitionArticleStatus(ctx, tx, record.ArticleId, models.ArticleStatusWaitForPublish); err != nil {
			return err
		}
		return models.PublishToContentEvents(ctx, tx, record.WorkspaceId, models.EventTypeGenerationCompleted,
			record.ID, models.ReferenceTypeGeneration, map[string]interface{}{
				"article_id": record.ArticleId,
				"seo_score":  final.SeoScore,
				"word_count": final.WordCount,
			})
	})
	if err != nil {
		return o.failGeneration(ctx, record, models.GenerationStatusFailed, err)
	}
	if o.Logger != nil {
		o.Logger.WithFields(logrus.Fields{
			"field":         "workflow",
			"workspace_id":  record.WorkspaceId,
			"article_id":    record.ArticleId,
			"generation_id": record.ID,
		}).Info("generation completed")
	}
	return nil
}

// detachContext builds a background context for pipeline goroutines that
// outlive the request, keeping tenant and correlation metadata.
func (o *Orchestrator) detachContext(ctx context.Context, workspaceId string) context.Context {
	bgCtx := utils.SetWorkspaceIdInContext(context.Background(), workspaceId)
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		bgCtx = utils.SetCorrelationIdInContext(bgCtx, correlationId)
	}
	return bgCtx
}
