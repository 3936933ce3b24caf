package seo

import "strings"

// Named failure codes produced by the audit checklist.
const (
	CodeMissingH1       = "missing_h1"
	CodeDuplicateH1     = "duplicate_h1"
	CodeTooFewH2        = "too_few_h2"
	CodeContentTooShort = "content_too_short"
	CodeKeywordMissing  = "keyword_missing"
	CodeKeywordNotEarly = "keyword_not_early"
	CodeTooFewLinks     = "too_few_links"
	CodeNoExternalLinks = "no_external_links"
	CodeMetaTooShort    = "meta_description_too_short"
	CodeMetaTooLong     = "meta_description_too_long"
	CodeMissingJSONLD   = "missing_json_ld"
	CodeHardToRead      = "hard_to_read"
)

// Thresholds holds the tunable limits of the checklist. Zero values fall
// back to DefaultThresholds.
type Thresholds struct {
	MinWords        int
	MinH2           int
	MinLinks        int
	MetaMinLen      int
	MetaMaxLen      int
	MinReadingEase  float64
	RequireJSONLD   bool
	RequireExternal bool
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWords:       800,
		MinH2:          3,
		MinLinks:       2,
		MetaMinLen:     50,
		MetaMaxLen:     160,
		MinReadingEase: 40,
	}
}

// Draft is the content under audit.
type Draft struct {
	Title           string
	Markdown        string
	MetaDescription string
	Keyword         string
	BaseURL         string
}

// Failure is one failed check. Required failures block completion and
// trigger remediation; advisory ones only lower the score.
type Failure struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
}

// Report is the outcome of one audit pass.
type Report struct {
	Score       int       `json:"score"`
	WordCount   int       `json:"word_count"`
	ReadingEase float64   `json:"reading_ease"`
	Failures    []Failure `json:"failures"`
}

// Passed reports whether no required check failed.
func (r Report) Passed() bool {
	for _, f := range r.Failures {
		if f.Required {
			return false
		}
	}
	return true
}

// RequiredFailures returns only the blocking failures.
func (r Report) RequiredFailures() []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

type check struct {
	weight   int
	required bool
	run      func(d Draft, t Thresholds, pre precomputed) *Failure
}

type precomputed struct {
	headings    []Heading
	links       []Link
	wordCount   int
	readingEase float64
	plain       string
}

// Audit runs the deterministic checklist over a draft. Same draft, same
// thresholds, same report.
func Audit(d Draft, t Thresholds) Report {
	defaults := DefaultThresholds()
	if t.MinWords == 0 {
		t.MinWords = defaults.MinWords
	}
	if t.MinH2 == 0 {
		t.MinH2 = defaults.MinH2
	}
	if t.MinLinks == 0 {
		t.MinLinks = defaults.MinLinks
	}
	if t.MetaMinLen == 0 {
		t.MetaMinLen = defaults.MetaMinLen
	}
	if t.MetaMaxLen == 0 {
		t.MetaMaxLen = defaults.MetaMaxLen
	}
	if t.MinReadingEase == 0 {
		t.MinReadingEase = defaults.MinReadingEase
	}

	plain := StripMarkdown(d.Markdown)
	pre := precomputed{
		headings:    ExtractHeadings(d.Markdown),
		links:       ExtractLinks(d.Markdown, d.BaseURL),
		wordCount:   CountWords(d.Markdown),
		readingEase: FleschReadingEase(plain),
		plain:       plain,
	}

	report := Report{Score: 100, WordCount: pre.wordCount, ReadingEase: pre.readingEase}
	for _, c := range checklist {
		if failure := c.run(d, t, pre); failure != nil {
			failure.Required = c.required
			report.Failures = append(report.Failures, *failure)
			report.Score -= c.weight
		}
	}
	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

var checklist = []check{
	{weight: 15, required: true, run: checkH1},
	{weight: 10, required: true, run: checkH2Count},
	{weight: 20, required: true, run: checkLength},
	{weight: 15, required: true, run: checkKeywordPresence},
	{weight: 5, required: false, run: checkKeywordEarly},
	{weight: 10, required: false, run: checkLinkCount},
	{weight: 5, required: false, run: checkExternalLinks},
	{weight: 10, required: false, run: checkMetaDescription},
	{weight: 5, required: false, run: checkJSONLD},
	{weight: 5, required: false, run: checkReadability},
}

func checkH1(d Draft, t Thresholds, pre precomputed) *Failure {
	h1s := 0
	for _, h := range pre.headings {
		if h.Level == 1 {
			h1s++
		}
	}
	if h1s == 0 {
		return &Failure{Code: CodeMissingH1, Message: "content has no H1 heading"}
	}
	if h1s > 1 {
		return &Failure{Code: CodeDuplicateH1, Message: "content has more than one H1 heading"}
	}
	return nil
}

func checkH2Count(d Draft, t Thresholds, pre precomputed) *Failure {
	h2s := 0
	for _, h := range pre.headings {
		if h.Level == 2 {
			h2s++
		}
	}
	if h2s < t.MinH2 {
		return &Failure{Code: CodeTooFewH2, Message: "content needs more section headings"}
	}
	return nil
}

func checkLength(d Draft, t Thresholds, pre precomputed) *Failure {
	if pre.wordCount < t.MinWords {
		return &Failure{Code: CodeContentTooShort, Message: "content is below the minimum word count"}
	}
	return nil
}

func checkKeywordPresence(d Draft, t Thresholds, pre precomputed) *Failure {
	if d.Keyword == "" {
		return nil
	}
	keyword := strings.ToLower(d.Keyword)
	inTitle := strings.Contains(strings.ToLower(d.Title), keyword)
	inBody := strings.Contains(strings.ToLower(pre.plain), keyword)
	if !inTitle && !inBody {
		return &Failure{Code: CodeKeywordMissing, Message: "primary keyword missing from title and body"}
	}
	return nil
}

func checkKeywordEarly(d Draft, t Thresholds, pre precomputed) *Failure {
	if d.Keyword == "" {
		return nil
	}
	first := strings.ToLower(FirstParagraph(d.Markdown))
	if first != "" && !strings.Contains(first, strings.ToLower(d.Keyword)) {
		return &Failure{Code: CodeKeywordNotEarly, Message: "primary keyword missing from the opening paragraph"}
	}
	return nil
}

func checkLinkCount(d Draft, t Thresholds, pre precomputed) *Failure {
	if len(pre.links) < t.MinLinks {
		return &Failure{Code: CodeTooFewLinks, Message: "content has too few links"}
	}
	return nil
}

func checkExternalLinks(d Draft, t Thresholds, pre precomputed) *Failure {
	if !t.RequireExternal {
		return nil
	}
	for _, l := range pre.links {
		if l.External {
			return nil
		}
	}
	return &Failure{Code: CodeNoExternalLinks, Message: "content has no external reference links"}
}

func checkMetaDescription(d Draft, t Thresholds, pre precomputed) *Failure {
	length := len(strings.TrimSpace(d.MetaDescription))
	if length < t.MetaMinLen {
		return &Failure{Code: CodeMetaTooShort, Message: "meta description is too short"}
	}
	if length > t.MetaMaxLen {
		return &Failure{Code: CodeMetaTooLong, Message: "meta description is too long"}
	}
	return nil
}

func checkJSONLD(d Draft, t Thresholds, pre precomputed) *Failure {
	if !t.RequireJSONLD {
		return nil
	}
	if !HasJSONLD(d.Markdown) {
		return &Failure{Code: CodeMissingJSONLD, Message: "content lacks JSON-LD structured data"}
	}
	return nil
}

func checkReadability(d Draft, t Thresholds, pre precomputed) *Failure {
	if pre.readingEase < t.MinReadingEase {
		return &Failure{Code: CodeHardToRead, Message: "content scores poorly on reading ease"}
	}
	return nil
}
