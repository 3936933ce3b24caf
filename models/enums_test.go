package models

import "testing"

func TestArticleStatusFlow_SinkStates(t *testing.T) {
	for _, sink := range []ArticleStatus{ArticleStatusPublished, ArticleStatusDeleted} {
		if len(ArticleStatusFlow[sink]) != 0 {
			t.Errorf("%s must have no outgoing transitions", sink)
		}
	}
}

func TestArticleStatusFlow_Edges(t *testing.T) {
	cases := []struct {
		from, to ArticleStatus
		allowed  bool
	}{
		{ArticleStatusIdea, ArticleStatusToGenerate, true},
		{ArticleStatusIdea, ArticleStatusGenerating, false},
		{ArticleStatusIdea, ArticleStatusPublished, false},
		{ArticleStatusToGenerate, ArticleStatusGenerating, true},
		{ArticleStatusToGenerate, ArticleStatusIdea, true},
		{ArticleStatusQueued, ArticleStatusGenerating, true},
		{ArticleStatusQueued, ArticleStatusToGenerate, true},
		{ArticleStatusQueued, ArticleStatusScheduled, false},
		{ArticleStatusScheduled, ArticleStatusPublished, true},
		{ArticleStatusGenerating, ArticleStatusWaitForPublish, true},
		{ArticleStatusGenerating, ArticleStatusToGenerate, true},
		{ArticleStatusGenerating, ArticleStatusPublished, false},
		{ArticleStatusWaitForPublish, ArticleStatusPublished, true},
		{ArticleStatusWaitForPublish, ArticleStatusScheduled, true},
		{ArticleStatusWaitForPublish, ArticleStatusGenerating, false},
		{ArticleStatusPublished, ArticleStatusDeleted, false},
		{ArticleStatusDeleted, ArticleStatusIdea, false},
	}
	for _, c := range cases {
		if got := CanTransitionArticleStatus(c.from, c.to); got != c.allowed {
			t.Errorf("%s -> %s: allowed=%v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestArticleStatusFlow_EveryStatusReachable(t *testing.T) {
	// Every non-initial status must be reachable from idea, or the board
	// has orphan columns.
	reachable := map[ArticleStatus]bool{ArticleStatusIdea: true}
	frontier := []ArticleStatus{ArticleStatusIdea}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, to := range ArticleStatusFlow[next] {
			if !reachable[to] {
				reachable[to] = true
				frontier = append(frontier, to)
			}
		}
	}
	for status := range ArticleStatusFlow {
		if !reachable[status] {
			t.Errorf("status %s is unreachable from idea", status)
		}
	}
}

func TestArticleStatusPredecessors(t *testing.T) {
	preds := ArticleStatusPredecessors(ArticleStatusGenerating)
	want := map[ArticleStatus]bool{
		ArticleStatusToGenerate: true,
		ArticleStatusQueued:     true,
		ArticleStatusScheduled:  true,
	}
	if len(preds) != len(want) {
		t.Fatalf("predecessors of generating = %v, want %v", preds, want)
	}
	for _, p := range preds {
		if !want[p] {
			t.Errorf("unexpected predecessor %s", p)
		}
	}

	if got := ArticleStatusPredecessors(ArticleStatusIdea); len(got) != 1 || got[0] != ArticleStatusToGenerate {
		t.Errorf("predecessors of idea = %v, want [to_generate]", got)
	}
}

func TestGenerationStatusTerminality(t *testing.T) {
	terminal := []GenerationStatus{
		GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusResearchFailed,
	}
	active := []GenerationStatus{
		GenerationStatusPending, GenerationStatusResearching, GenerationStatusOutline,
		GenerationStatusWriting, GenerationStatusQualityControl,
		GenerationStatusValidating, GenerationStatusUpdating,
	}
	for _, s := range terminal {
		if !s.IsTerminal() || s.IsActive() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range active {
		if s.IsTerminal() || !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
}

func TestReplayableOutboxStatuses(t *testing.T) {
	replayable := map[string]bool{}
	for _, s := range ReplayableOutboxStatuses() {
		replayable[s] = true
	}
	if !replayable[OutboxPublishStatusFailed] || !replayable[OutboxPublishStatusDead] {
		t.Fatalf("failed and dead rows must be replayable, got %v", ReplayableOutboxStatuses())
	}
	for _, s := range []string{OutboxPublishStatusPending, OutboxPublishStatusProcessing, OutboxPublishStatusSent} {
		if replayable[s] {
			t.Errorf("replaying a %s row would duplicate or race its delivery", s)
		}
	}
}
