package workflow

import (
	"context"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/publisher"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PublishSweeper flips articles past their publish time to published,
// fans out Publication rows per enabled channel and delivers them.
type PublishSweeper struct {
	Logger *logrus.Logger

	BatchSize    int
	PollInterval time.Duration

	// overridable in tests
	publisherFor func(models.PublishChannel) (publisher.Publisher, error)
}

func NewPublishSweeper(logger *logrus.Logger) *PublishSweeper {
	return &PublishSweeper{
		Logger:       logger,
		BatchSize:    50,
		PollInterval: time.Minute,
		publisherFor: publisher.ForChannel,
	}
}

func (s *PublishSweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.SweepOnce(ctx)
		s.DeliverOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

// SweepOnce publishes every article whose publish time has passed. Each
// article is handled in its own transaction; one failure does not stop
// the rest.
func (s *PublishSweeper) SweepOnce(ctx context.Context) int {
	articles, err := models.GetArticlesDueForPublish(ctx, time.Now().UTC(), s.BatchSize)
	if err != nil {
		config.LogError(s.Logger, "workflow", "SweepOnce", "select due articles", nil, err)
		return 0
	}
	published := 0
	for _, article := range articles {
		if err := s.publishArticle(ctx, article); err != nil {
			config.LogError(s.Logger, "workflow", "SweepOnce", "publish article", article.ID, err)
			continue
		}
		published++
	}
	return published
}

// publishArticle performs the status flip, publication fan-out and outbox
// event in one transaction. The conditional transition makes concurrent
// sweeps safe: only one of them gets RowsAffected 1.
func (s *PublishSweeper) publishArticle(ctx context.Context, article *models.Article) error {
	project, err := models.GetProjectByID(ctx, article.ProjectId)
	if err != nil {
		return err
	}
	channels := project.EnabledChannels()

	db := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	return db.Transaction(func(tx *gorm.DB) error {
		changed, err := models.TransitionArticleStatus(ctx, tx, article.ID, models.ArticleStatusPublished)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := models.CreatePublicationsForArticle(ctx, tx, article, channels); err != nil {
			return err
		}
		return models.PublishToContentEvents(ctx, tx, article.WorkspaceId, models.EventTypeArticlePublished,
			article.ID, models.ReferenceTypeArticle, map[string]interface{}{
				"title":    article.Title,
				"slug":     article.Slug,
				"channels": channels,
			})
	})
}

// DeliverOnce attempts delivery for pending and retryable publications.
// Per-channel failures are recorded on the row, never propagated.
func (s *PublishSweeper) DeliverOnce(ctx context.Context) int {
	pubs, err := models.GetDeliverablePublications(ctx, time.Now().UTC(), s.BatchSize)
	if err != nil {
		config.LogError(s.Logger, "workflow", "DeliverOnce", "select publications", nil, err)
		return 0
	}
	delivered := 0
	for _, pub := range pubs {
		if s.deliver(ctx, pub) {
			delivered++
		}
	}
	return delivered
}

func (s *PublishSweeper) deliver(ctx context.Context, pub *models.Publication) bool {
	article, err := models.GetArticleByID(ctx, pub.ArticleId)
	if err != nil {
		s.recordFailure(ctx, pub, err)
		return false
	}
	project, err := models.GetProjectByID(ctx, article.ProjectId)
	if err != nil {
		s.recordFailure(ctx, pub, err)
		return false
	}

	channelPublisher, err := s.publisherFor(pub.Channel)
	if err != nil {
		s.recordFailure(ctx, pub, err)
		return false
	}

	post := publisher.Post{
		Title:           article.Title,
		Markdown:        article.ContentMarkdown,
		MetaDescription: article.MetaDescription,
		Slug:            article.Slug,
		CoverImageURL:   article.CoverImageURL,
		CanonicalURL:    canonicalURL(project.BaseURL, article.Slug),
	}
	externalURL, err := channelPublisher.Publish(ctx, post)
	if err != nil {
		s.recordFailure(ctx, pub, err)
		return false
	}
	if err := models.MarkPublicationSent(ctx, pub.ID, externalURL); err != nil {
		config.LogError(s.Logger, "workflow", "deliver", "mark sent", pub.ID, err)
		return false
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":        "PublishSweeper",
			"workspace_id": pub.WorkspaceId,
			"article_id":   pub.ArticleId,
			"channel":      pub.Channel,
		}).Info("publication delivered")
	}
	return true
}

func (s *PublishSweeper) recordFailure(ctx context.Context, pub *models.Publication, cause error) {
	config.LogError(s.Logger, "workflow", "deliver", "delivery failed", pub.ID, cause)
	if err := models.MarkPublicationFailed(ctx, pub, cause.Error()); err != nil {
		config.LogError(s.Logger, "workflow", "deliver", "mark failed", pub.ID, err)
	}
}

func canonicalURL(baseURL string, slug string) string {
	if baseURL == "" || slug == "" {
		return ""
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return baseURL + "/blog/" + slug
}
