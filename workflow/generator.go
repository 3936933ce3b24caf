package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/draftforge/contentflow_backend/aiclient"
)

// DraftRequest carries the project settings the writing phase must honor.
type DraftRequest struct {
	Topic           string
	Keyword         string
	Tone            string
	TargetWordCount int
	ResearchSummary string
	KeyPoints       []string
}

// Generator abstracts the AI gateway so the orchestrator and its tests do
// not depend on live HTTP calls.
type Generator interface {
	Research(ctx context.Context, topic string, keyword string) (*aiclient.ResearchResult, error)
	StartResearchTask(ctx context.Context, topic string, keyword string, callbackURL string) (string, error)
	FetchResearchResult(ctx context.Context, runId string) (*aiclient.ResearchResult, error)
	Draft(ctx context.Context, req DraftRequest) (*aiclient.DraftResult, error)
	Critique(ctx context.Context, markdown string) (*aiclient.CritiqueResult, error)
	Validate(ctx context.Context, markdown string) (*aiclient.ValidationResult, error)
	Rewrite(ctx context.Context, markdown string, metaDescription string, corrections []string) (*aiclient.RewriteResult, error)
	FindCoverImage(ctx context.Context, query string) (*aiclient.ImageResult, error)
}

// AIGenerator implements Generator on the schema-constrained gateway
// client, owning the prompt construction for every phase.
type AIGenerator struct {
	Client *aiclient.Client
}

func NewAIGenerator(client *aiclient.Client) *AIGenerator {
	return &AIGenerator{Client: client}
}

func (g *AIGenerator) Research(ctx context.Context, topic string, keyword string) (*aiclient.ResearchResult, error) {
	return g.Client.Research(ctx, topic, keyword)
}

func (g *AIGenerator) StartResearchTask(ctx context.Context, topic string, keyword string, callbackURL string) (string, error) {
	return g.Client.CreateResearchTask(ctx, topic, keyword, callbackURL)
}

func (g *AIGenerator) FetchResearchResult(ctx context.Context, runId string) (*aiclient.ResearchResult, error) {
	return g.Client.FetchResearchResult(ctx, runId)
}

func (g *AIGenerator) Draft(ctx context.Context, req DraftRequest) (*aiclient.DraftResult, error) {
	tone := req.Tone
	if tone == "" {
		tone = "informative"
	}
	prompt := fmt.Sprintf(
		"Write an SEO article titled around %q targeting the keyword %q. Tone: %s. Target length: %d words. "+
			"Base it on this research summary:\n%s\nKey points:\n- %s\n"+
			"Return an outline, the full markdown body with one H1 and descriptive H2 sections, and a meta description.",
		req.Topic, req.Keyword, tone, req.TargetWordCount, req.ResearchSummary, strings.Join(req.KeyPoints, "\n- "))
	var result aiclient.DraftResult
	if err := g.Client.Generate(ctx, prompt, "draft_result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *AIGenerator) Critique(ctx context.Context, markdown string) (*aiclient.CritiqueResult, error) {
	prompt := "Critique the following article draft for clarity, structure, accuracy of tone and completeness. " +
		"List concrete issues with categories and suggestions; do not rewrite the content.\n\n" + markdown
	var result aiclient.CritiqueResult
	if err := g.Client.Generate(ctx, prompt, "critique_result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *AIGenerator) Validate(ctx context.Context, markdown string) (*aiclient.ValidationResult, error) {
	prompt := "Fact-check the factual claims in the following article against current public sources. " +
		"Return each doubtful claim with the problem and a suggested correction.\n\n" + markdown
	var result aiclient.ValidationResult
	if err := g.Client.Generate(ctx, prompt, "validation_result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *AIGenerator) Rewrite(ctx context.Context, markdown string, metaDescription string, corrections []string) (*aiclient.RewriteResult, error) {
	prompt := fmt.Sprintf(
		"Revise the following article, applying these corrections while preserving structure and tone:\n- %s\n\n"+
			"Current meta description: %s\n\nArticle:\n%s",
		strings.Join(corrections, "\n- "), metaDescription, markdown)
	var result aiclient.RewriteResult
	if err := g.Client.Generate(ctx, prompt, "rewrite_result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *AIGenerator) FindCoverImage(ctx context.Context, query string) (*aiclient.ImageResult, error) {
	return g.Client.BestImage(ctx, query)
}
