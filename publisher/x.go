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

const xMaxPostLen = 280

// xPublisher posts an announcement with the article link to X.
type xPublisher struct {
	token string
	http  *http.Client
}

func newXPublisher() (*xPublisher, error) {
	token := strings.TrimSpace(os.Getenv("X_ACCESS_TOKEN"))
	if token == "" {
		return nil, errors.New("X_ACCESS_TOKEN is not set")
	}
	return &xPublisher{
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *xPublisher) Publish(ctx context.Context, post Post) (string, error) {
	if post.CanonicalURL == "" {
		return "", errors.New("x publishing needs the article's canonical url")
	}
	text := composePostText(post.Title, post.CanonicalURL)
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.x.com/2/tweets", bytes.NewReader(body))
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
		return "", fmt.Errorf("x api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if parsed.Data.ID == "" {
		return "", nil
	}
	return "https://x.com/i/status/" + parsed.Data.ID, nil
}

// composePostText fits title plus link inside the post limit; links count a
// fixed 23 characters after shortening.
func composePostText(title string, link string) string {
	const shortenedLinkLen = 23
	budget := xMaxPostLen - shortenedLinkLen - 1
	runes := []rune(title)
	if len(runes) > budget {
		runes = runes[:budget-1]
		return strings.TrimSpace(string(runes)) + "… " + link
	}
	return title + " " + link
}
