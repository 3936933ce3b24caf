package seo

import (
	"strings"
	"testing"
)

func goodDraft() Draft {
	paragraph := strings.Repeat("Growing tomatoes at home is a simple way to get fresh food from a small garden. ", 20)
	markdown := "# How to Grow Tomatoes\n\n" +
		"It is easy to grow tomatoes once you know the basics of soil and light.\n\n" +
		"## Choosing a Variety\n\n" + paragraph + "\n\n" +
		"## Planting and Soil\n\n" + paragraph + "\n\n" +
		"## Watering and Care\n\n" + paragraph + "\n\n" +
		"Read more in [our soil guide](https://example.com/blog/soil) and this " +
		"[university study](https://research.edu/tomatoes).\n"
	return Draft{
		Title:           "How to Grow Tomatoes",
		Markdown:        markdown,
		MetaDescription: "Learn how to grow tomatoes at home, from choosing a variety to planting, watering, and harvesting.",
		Keyword:         "grow tomatoes",
		BaseURL:         "https://example.com",
	}
}

func hasCode(report Report, code string) bool {
	for _, f := range report.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}

func TestAuditPassesGoodDraft(t *testing.T) {
	report := Audit(goodDraft(), Thresholds{})
	if !report.Passed() {
		t.Fatalf("expected pass, got failures %+v", report.Failures)
	}
	if report.Score != 100 {
		t.Errorf("expected score 100, got %d (failures %+v)", report.Score, report.Failures)
	}
}

func TestAuditDuplicateH1(t *testing.T) {
	d := goodDraft()
	d.Markdown += "\n# Another Top Heading\n"
	report := Audit(d, Thresholds{})
	if !hasCode(report, CodeDuplicateH1) {
		t.Fatalf("expected %s, got %+v", CodeDuplicateH1, report.Failures)
	}
	if report.Passed() {
		t.Error("duplicate H1 must fail the gate")
	}
}

func TestAuditMissingH1(t *testing.T) {
	d := goodDraft()
	d.Markdown = strings.Replace(d.Markdown, "# How to Grow Tomatoes\n", "", 1)
	report := Audit(d, Thresholds{})
	if !hasCode(report, CodeMissingH1) {
		t.Fatalf("expected %s, got %+v", CodeMissingH1, report.Failures)
	}
}

func TestAuditTooFewH2(t *testing.T) {
	d := goodDraft()
	report := Audit(d, Thresholds{MinH2: 5})
	if !hasCode(report, CodeTooFewH2) {
		t.Fatalf("expected %s, got %+v", CodeTooFewH2, report.Failures)
	}
	if report.Passed() {
		t.Error("too few H2s must fail the gate")
	}
}

func TestAuditContentTooShort(t *testing.T) {
	d := goodDraft()
	d.Markdown = "# Short\n\nNot much here about how to grow tomatoes.\n\n## One\n\nText.\n\n## Two\n\nText.\n\n## Three\n\nText.\n"
	report := Audit(d, Thresholds{})
	if !hasCode(report, CodeContentTooShort) {
		t.Fatalf("expected %s, got %+v", CodeContentTooShort, report.Failures)
	}
	if report.Passed() {
		t.Error("short content must fail the gate")
	}
}

func TestAuditKeywordMissing(t *testing.T) {
	d := goodDraft()
	d.Keyword = "hydroponic lettuce"
	report := Audit(d, Thresholds{})
	if !hasCode(report, CodeKeywordMissing) {
		t.Fatalf("expected %s, got %+v", CodeKeywordMissing, report.Failures)
	}
}

func TestAuditMetaDescriptionBounds(t *testing.T) {
	d := goodDraft()
	d.MetaDescription = "Too short."
	if report := Audit(d, Thresholds{}); !hasCode(report, CodeMetaTooShort) {
		t.Errorf("expected %s, got %+v", CodeMetaTooShort, report.Failures)
	}
	d.MetaDescription = strings.Repeat("A very long meta description. ", 10)
	if report := Audit(d, Thresholds{}); !hasCode(report, CodeMetaTooLong) {
		t.Errorf("expected %s, got %+v", CodeMetaTooLong, report.Failures)
	}
}

func TestAuditJSONLDOnlyWhenRequired(t *testing.T) {
	d := goodDraft()
	if report := Audit(d, Thresholds{}); hasCode(report, CodeMissingJSONLD) {
		t.Error("JSON-LD must not be checked unless required")
	}
	report := Audit(d, Thresholds{RequireJSONLD: true})
	if !hasCode(report, CodeMissingJSONLD) {
		t.Fatalf("expected %s, got %+v", CodeMissingJSONLD, report.Failures)
	}
	d.Markdown += "\n<script type=\"application/ld+json\">{\"@type\": \"Article\"}</script>\n"
	if report := Audit(d, Thresholds{RequireJSONLD: true}); hasCode(report, CodeMissingJSONLD) {
		t.Error("embedded JSON-LD block not detected")
	}
}

func TestAuditDeterministic(t *testing.T) {
	d := goodDraft()
	first := Audit(d, Thresholds{})
	second := Audit(d, Thresholds{})
	if first.Score != second.Score || len(first.Failures) != len(second.Failures) {
		t.Fatalf("audit is not deterministic: %+v vs %+v", first, second)
	}
}

func TestExtractHeadings(t *testing.T) {
	markdown := "# Title\n\n## Section\n\ntext\n\n### Sub\n\n<h2>Inline Section</h2>\n"
	headings := ExtractHeadings(markdown)
	counts := map[int]int{}
	for _, h := range headings {
		counts[h.Level]++
	}
	if counts[1] != 1 || counts[2] != 2 || counts[3] != 1 {
		t.Fatalf("unexpected heading counts %v from %+v", counts, headings)
	}
}

func TestExtractLinksClassifiesExternal(t *testing.T) {
	markdown := "See [internal](https://example.com/about), [relative](/pricing) and [external](https://other.org/page)."
	links := ExtractLinks(markdown, "https://example.com")
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	external := 0
	for _, l := range links {
		if l.External {
			external++
		}
	}
	if external != 1 {
		t.Errorf("expected 1 external link, got %d in %+v", external, links)
	}
}

func TestCountWordsIgnoresCodeAndSyntax(t *testing.T) {
	markdown := "# Title\n\nOne two three.\n\n```\nignored code block\n```\n\nFour five."
	if got := CountWords(markdown); got != 6 {
		t.Errorf("expected 6 words, got %d", got)
	}
}

func TestFleschReadingEase(t *testing.T) {
	simple := "The cat sat. The dog ran. The sun is out."
	complex := "Notwithstanding extraordinarily convoluted institutional considerations, interdisciplinary organizational heterogeneity fundamentally necessitates comprehensive reconceptualization."
	if FleschReadingEase(simple) <= FleschReadingEase(complex) {
		t.Error("simple prose must score higher than dense prose")
	}
	if FleschReadingEase("") != 0 {
		t.Error("empty text must score 0")
	}
}
