package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// blogPublisher posts to the workspace blog's REST endpoint.
type blogPublisher struct {
	baseURL string
	token   string
	http    *http.Client
}

func newBlogPublisher() (*blogPublisher, error) {
	baseURL := strings.TrimSpace(os.Getenv("BLOG_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("BLOG_API_BASE_URL is not set")
	}
	token := strings.TrimSpace(os.Getenv("BLOG_API_TOKEN"))
	if token == "" {
		return nil, errors.New("BLOG_API_TOKEN is not set")
	}
	return &blogPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type blogPostRequest struct {
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	Markdown        string `json:"markdown"`
	MetaDescription string `json:"meta_description"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
	Status          string `json:"status"`
}

func (p *blogPublisher) Publish(ctx context.Context, post Post) (string, error) {
	body, err := json.Marshal(blogPostRequest{
		Title:           post.Title,
		Slug:            post.Slug,
		Markdown:        post.Markdown,
		MetaDescription: post.MetaDescription,
		CoverImageURL:   post.CoverImageURL,
		Status:          "publish",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("blog api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	var parsed struct {
		Link string `json:"link"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", nil
	}
	if parsed.Link != "" {
		return parsed.Link, nil
	}
	return parsed.URL, nil
}
