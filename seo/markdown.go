package seo

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Heading is one markdown heading with its level (1 for H1).
type Heading struct {
	Level int
	Text  string
}

// Link is a hyperlink found in the content.
type Link struct {
	Text     string
	URL      string
	External bool
}

var (
	headingRe      = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*#*\s*$`)
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	imageRe        = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)`)
	codeFenceRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe   = regexp.MustCompile("`[^`]*`")
	wordRe         = regexp.MustCompile(`[A-Za-z0-9']+`)
)

// StripMarkdown reduces markdown to plain prose for word counting and
// readability scoring. Code blocks are dropped entirely.
func StripMarkdown(markdown string) string {
	text := codeFenceRe.ReplaceAllString(markdown, " ")
	text = inlineCodeRe.ReplaceAllString(text, " ")
	text = imageRe.ReplaceAllString(text, " ")
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "$2")
	replacer := strings.NewReplacer("*", "", "_", "", ">", "", "#", "", "|", " ")
	return replacer.Replace(text)
}

// ExtractHeadings returns headings in document order. Inline HTML headings
// (h1..h6 tags embedded in the markdown) are included as well, since
// generated drafts occasionally mix the two.
func ExtractHeadings(markdown string) []Heading {
	withoutCode := codeFenceRe.ReplaceAllString(markdown, "")
	var headings []Heading
	for _, m := range headingRe.FindAllStringSubmatch(withoutCode, -1) {
		headings = append(headings, Heading{Level: len(m[1]), Text: strings.TrimSpace(m[2])})
	}
	if strings.Contains(withoutCode, "<h") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(withoutCode))
		if err == nil {
			for level := 1; level <= 6; level++ {
				tag := []string{"h1", "h2", "h3", "h4", "h5", "h6"}[level-1]
				lvl := level
				doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
					headings = append(headings, Heading{Level: lvl, Text: strings.TrimSpace(s.Text())})
				})
			}
		}
	}
	return headings
}

// ExtractLinks returns markdown and inline-HTML links. A link is external
// when it is absolute and does not point at baseURL's host.
func ExtractLinks(markdown string, baseURL string) []Link {
	withoutCode := codeFenceRe.ReplaceAllString(markdown, "")
	// drop image links so ![alt](src) is not double counted
	withoutImages := imageRe.ReplaceAllString(withoutCode, "")

	var links []Link
	for _, m := range markdownLinkRe.FindAllStringSubmatch(withoutImages, -1) {
		links = append(links, Link{Text: m[1], URL: m[2], External: isExternal(m[2], baseURL)})
	}
	if strings.Contains(withoutImages, "<a") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(withoutImages))
		if err == nil {
			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				links = append(links, Link{Text: strings.TrimSpace(s.Text()), URL: href, External: isExternal(href, baseURL)})
			})
		}
	}
	return links
}

func isExternal(href string, baseURL string) bool {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return false
	}
	if baseURL == "" {
		return true
	}
	return !strings.Contains(href, hostOf(baseURL))
}

func hostOf(rawURL string) string {
	host := rawURL
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}

// CountWords counts prose words, ignoring markdown syntax and code.
func CountWords(markdown string) int {
	return len(wordRe.FindAllString(StripMarkdown(markdown), -1))
}

// HasJSONLD reports whether the content embeds a JSON-LD structured data
// block (script type application/ld+json).
func HasJSONLD(markdown string) bool {
	if !strings.Contains(markdown, "ld+json") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markdown))
	if err != nil {
		return false
	}
	found := false
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			found = true
		}
	})
	return found
}

// FirstParagraph returns the first non-heading, non-empty prose block.
func FirstParagraph(markdown string) string {
	withoutCode := codeFenceRe.ReplaceAllString(markdown, "")
	for _, block := range strings.Split(withoutCode, "\n\n") {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "<") {
			continue
		}
		return trimmed
	}
	return ""
}
