package aiclient

// ResearchResult is the research phase output: source material the writing
// phase builds on.
type ResearchResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Sources   []Source `json:"sources"`
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DraftResult is the outline/write phase output.
type DraftResult struct {
	Title           string `json:"title"`
	Outline         string `json:"outline"`
	Markdown        string `json:"markdown"`
	MetaDescription string `json:"meta_description"`
}

// CritiqueResult is the quality-control phase output: issues only, no
// rewritten content.
type CritiqueResult struct {
	Issues []CritiqueIssue `json:"issues"`
}

type CritiqueIssue struct {
	Category   string `json:"category"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// ValidationResult is the fact-check phase output.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

type ValidationIssue struct {
	Claim      string `json:"claim"`
	Problem    string `json:"problem"`
	Correction string `json:"correction"`
}

// RewriteResult is the remediation output: the corrected draft.
type RewriteResult struct {
	Markdown        string `json:"markdown"`
	MetaDescription string `json:"meta_description"`
}

// ImageResult is one candidate cover image.
type ImageResult struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	Credit      string `json:"credit"`
}
