package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
)

// SearchImages queries the image search service for cover candidates.
// Results come back best-match first.
func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]ImageResult, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	raw, err := c.getJSON(ctx, "/v1/images/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Results []ImageResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// BestImage returns the top usable result for a query.
func (c *Client) BestImage(ctx context.Context, query string) (*ImageResult, error) {
	results, err := c.SearchImages(ctx, query, 3)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.URL != "" {
			return &r, nil
		}
	}
	return nil, errors.New("no image found")
}
