package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Research runs a synchronous research call. Used when RESEARCH_SYNC_MODE
// is on or the async service is not configured.
func (c *Client) Research(ctx context.Context, topic string, keyword string) (*ResearchResult, error) {
	prompt := fmt.Sprintf("Research the topic %q with primary keyword %q. Summarize findings, key points and cited sources.", topic, keyword)
	var result ResearchResult
	if err := c.Generate(ctx, prompt, "research_result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type createTaskRequest struct {
	Topic    string `json:"topic"`
	Keyword  string `json:"keyword"`
	Callback string `json:"callback_url,omitempty"`
}

type createTaskResponse struct {
	RunId string `json:"run_id"`
}

// CreateResearchTask hands research off to the long-running research
// service and returns its run id; the result arrives later by webhook.
func (c *Client) CreateResearchTask(ctx context.Context, topic string, keyword string, callbackURL string) (string, error) {
	body, err := json.Marshal(createTaskRequest{Topic: topic, Keyword: keyword, Callback: callbackURL})
	if err != nil {
		return "", err
	}
	raw, err := c.postJSON(ctx, "/v1/research/tasks", body)
	if err != nil {
		return "", err
	}
	var resp createTaskResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.RunId == "" {
		return "", errors.New("research service returned no run id")
	}
	return resp.RunId, nil
}

// FetchResearchResult pulls the full result for a completed run. The
// webhook payload only signals completion; the body is fetched here.
func (c *Client) FetchResearchResult(ctx context.Context, runId string) (*ResearchResult, error) {
	raw, err := c.getJSON(ctx, "/v1/research/tasks/"+url.PathEscape(runId)+"/result")
	if err != nil {
		return nil, err
	}
	var result ResearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
