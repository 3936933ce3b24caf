package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/seo"
)

// draftArtifact is the write phase output, overwritten in place whenever
// remediation rewrites the content.
type draftArtifact struct {
	Title           string `json:"title"`
	Outline         string `json:"outline"`
	Markdown        string `json:"markdown"`
	MetaDescription string `json:"meta_description"`
}

// finalizeArtifact is the audit phase output.
type finalizeArtifact struct {
	Report            seo.Report `json:"report"`
	CoverImageURL     string     `json:"cover_image_url"`
	RemediationRounds int        `json:"remediation_rounds"`
}

func getArtifact[T any](record *models.GenerationRecord, key string) (*T, bool, error) {
	raw, ok := record.Artifacts[key]
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("artifact %q is corrupt: %w", key, err)
	}
	return &out, true, nil
}

func putArtifact(record *models.GenerationRecord, key string, value interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if record.Artifacts == nil {
		record.Artifacts = models.ArtifactBag{}
	}
	record.Artifacts[key] = raw
	return raw, nil
}

// failureIsRefundable reports whether a failed run ever produced a draft.
// A run that died before drafting consumed the workspace's credit for
// nothing, so the deduction comes back.
func failureIsRefundable(record *models.GenerationRecord) bool {
	draft, ok, err := getArtifact[draftArtifact](record, PhaseWrite)
	if err != nil || !ok {
		return true
	}
	return draft.Markdown == ""
}

type finalDraft struct {
	Markdown        string
	MetaDescription string
	CoverImageURL   string
	WordCount       int
	SeoScore        int
}

// loadFinalDraft assembles the completion payload from the artifact bag.
func loadFinalDraft(record *models.GenerationRecord) (*finalDraft, error) {
	draft, ok, err := getArtifact[draftArtifact](record, PhaseWrite)
	if err != nil {
		return nil, err
	}
	if !ok || draft.Markdown == "" {
		return nil, fmt.Errorf("generation %d has no draft artifact", record.ID)
	}
	final := &finalDraft{
		Markdown:        draft.Markdown,
		MetaDescription: draft.MetaDescription,
		WordCount:       seo.CountWords(draft.Markdown),
	}
	audit, ok, err := getArtifact[finalizeArtifact](record, PhaseFinalize)
	if err != nil {
		return nil, err
	}
	if ok {
		final.CoverImageURL = audit.CoverImageURL
		final.SeoScore = audit.Report.Score
	}
	return final, nil
}
