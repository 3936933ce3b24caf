package publisher

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/draftforge/contentflow_backend/models"
)

func TestComposePostText_ShortTitlePassesThrough(t *testing.T) {
	got := composePostText("Composting Basics", "https://example.com/blog/composting")
	want := "Composting Basics https://example.com/blog/composting"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestComposePostText_LongTitleIsTruncated(t *testing.T) {
	title := strings.Repeat("tomato ", 60)
	link := "https://example.com/blog/tomatoes"
	got := composePostText(title, link)

	if !strings.HasSuffix(got, "… "+link) {
		t.Fatalf("truncated post missing ellipsis and link: %q", got)
	}
	// Links count a fixed 23 characters regardless of actual length.
	effective := utf8.RuneCountInString(strings.TrimSuffix(got, link)) + 23
	if effective > 280 {
		t.Errorf("post length %d exceeds the limit", effective)
	}
}

func TestForChannel_UnknownChannel(t *testing.T) {
	if _, err := ForChannel(models.PublishChannel("myspace")); err == nil {
		t.Fatal("expected an error for an unknown channel")
	}
}
