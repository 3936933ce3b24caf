package publisher

import (
	"context"
	"fmt"

	"github.com/draftforge/contentflow_backend/models"
)

// Post is the channel-independent shape of a published article.
type Post struct {
	Title           string
	Markdown        string
	MetaDescription string
	Slug            string
	CoverImageURL   string
	CanonicalURL    string
}

// Publisher delivers one post to one channel. Implementations are one-way:
// a delivery failure is reported, never retried internally.
type Publisher interface {
	Publish(ctx context.Context, post Post) (externalURL string, err error)
}

// ForChannel returns the configured publisher for a channel.
func ForChannel(channel models.PublishChannel) (Publisher, error) {
	switch channel {
	case models.PublishChannelBlog:
		return newBlogPublisher()
	case models.PublishChannelReddit:
		return newRedditPublisher()
	case models.PublishChannelX:
		return newXPublisher()
	default:
		return nil, fmt.Errorf("unknown publish channel %q", channel)
	}
}
