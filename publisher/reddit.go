package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// redditPublisher submits a link post to a configured subreddit using an
// OAuth bearer token managed outside this service.
type redditPublisher struct {
	token     string
	subreddit string
	userAgent string
	http      *http.Client
}

func newRedditPublisher() (*redditPublisher, error) {
	token := strings.TrimSpace(os.Getenv("REDDIT_ACCESS_TOKEN"))
	if token == "" {
		return nil, errors.New("REDDIT_ACCESS_TOKEN is not set")
	}
	subreddit := strings.TrimSpace(os.Getenv("REDDIT_SUBREDDIT"))
	if subreddit == "" {
		return nil, errors.New("REDDIT_SUBREDDIT is not set")
	}
	userAgent := strings.TrimSpace(os.Getenv("REDDIT_USER_AGENT"))
	if userAgent == "" {
		userAgent = "contentflow/1.0"
	}
	return &redditPublisher{
		token:     token,
		subreddit: subreddit,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *redditPublisher) Publish(ctx context.Context, post Post) (string, error) {
	if post.CanonicalURL == "" {
		return "", errors.New("reddit publishing needs the article's canonical url")
	}
	form := url.Values{}
	form.Set("sr", p.subreddit)
	form.Set("kind", "link")
	form.Set("title", post.Title)
	form.Set("url", post.CanonicalURL)
	form.Set("api_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://oauth.reddit.com/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reddit api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	var parsed struct {
		Json struct {
			Errors [][]interface{} `json:"errors"`
			Data   struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Json.Errors) > 0 {
		return "", fmt.Errorf("reddit submit rejected: %v", parsed.Json.Errors)
	}
	return parsed.Json.Data.URL, nil
}
