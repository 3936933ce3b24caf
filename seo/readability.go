package seo

import (
	"regexp"
	"strings"
)

var sentenceEndRe = regexp.MustCompile(`[.!?]+(\s|$)`)

// FleschReadingEase computes the classic Flesch score for plain prose.
// Higher is easier; 60-70 reads as plain English. Returns 0 for empty text.
func FleschReadingEase(text string) float64 {
	words := wordRe.FindAllString(text, -1)
	if len(words) == 0 {
		return 0
	}
	sentences := sentenceEndRe.FindAllString(text, -1)
	sentenceCount := len(sentences)
	if sentenceCount == 0 {
		sentenceCount = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	wordCount := float64(len(words))
	score := 206.835 - 1.015*(wordCount/float64(sentenceCount)) - 84.6*(float64(syllables)/wordCount)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// countSyllables estimates syllables by counting vowel groups, with the
// usual silent-e adjustment. An estimate is fine here; the audit only
// thresholds the aggregate score.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
