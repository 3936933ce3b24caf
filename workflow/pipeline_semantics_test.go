package workflow

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/draftforge/contentflow_backend/aiclient"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/seo"
)

// NOTE: These tests are intentionally DB-free. They validate the pipeline
// semantics the DB enforces in production:
// - the claim step admits exactly one winner per article
// - progress is monotone under any interleaving of phase advances
// - resumption skips phases the record already ran
//
// Full DB integration tests require MySQL and belong in an environment
// that can run one.

// fakeArticleStore mirrors the conditional-UPDATE claim: the status moves
// only when the current status is a valid predecessor of the target.
type fakeArticleStore struct {
	mu     sync.Mutex
	status map[int]models.ArticleStatus
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{status: map[int]models.ArticleStatus{}}
}

func (s *fakeArticleStore) transition(articleId int, to models.ArticleStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.status[articleId]
	if !models.CanTransitionArticleStatus(current, to) {
		return false
	}
	s.status[articleId] = to
	return true
}

func (s *fakeArticleStore) claim(articleId int) ClaimResult {
	if s.transition(articleId, models.ArticleStatusGenerating) {
		return Claimed
	}
	s.mu.Lock()
	current := s.status[articleId]
	s.mu.Unlock()
	if current == models.ArticleStatusGenerating {
		return AlreadyClaimed
	}
	return InvalidState
}

func TestClaim_ConcurrentCallers_ExactlyOneWins(t *testing.T) {
	for run := 0; run < 100; run++ {
		store := newFakeArticleStore()
		store.status[1] = models.ArticleStatusToGenerate

		results := make([]ClaimResult, 20)
		var wg sync.WaitGroup
		for i := 0; i < len(results); i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = store.claim(1)
			}(i)
		}
		wg.Wait()

		claimed, alreadyClaimed := 0, 0
		for _, r := range results {
			switch r {
			case Claimed:
				claimed++
			case AlreadyClaimed:
				alreadyClaimed++
			default:
				t.Fatalf("run=%d unexpected result %v", run, r)
			}
		}
		if claimed != 1 {
			t.Fatalf("run=%d expected exactly 1 winner, got %d", run, claimed)
		}
		if alreadyClaimed != len(results)-1 {
			t.Fatalf("run=%d expected %d losers, got %d", run, len(results)-1, alreadyClaimed)
		}
		if store.status[1] != models.ArticleStatusGenerating {
			t.Fatalf("run=%d article not generating after claim", run)
		}
	}
}

func TestClaim_TerminalArticle_IsInvalidState(t *testing.T) {
	store := newFakeArticleStore()
	store.status[1] = models.ArticleStatusPublished
	if got := store.claim(1); got != InvalidState {
		t.Fatalf("expected InvalidState for published article, got %v", got)
	}
	store.status[2] = models.ArticleStatusDeleted
	if got := store.claim(2); got != InvalidState {
		t.Fatalf("expected InvalidState for deleted article, got %v", got)
	}
}

// A generating article has no edge back into generating, so the conditional
// claim alone can never recover an article whose pipeline died mid-phase.
// Recovery goes through the stale-record takeover instead.
func TestClaim_GeneratingArticle_RecoveredOnlyByStaleTakeover(t *testing.T) {
	if models.CanTransitionArticleStatus(models.ArticleStatusGenerating, models.ArticleStatusGenerating) {
		t.Fatal("generating must not be its own claim predecessor")
	}
	store := newFakeArticleStore()
	store.status[1] = models.ArticleStatusGenerating
	if got := store.claim(1); got != AlreadyClaimed {
		t.Fatalf("claim on generating article = %v, want AlreadyClaimed", got)
	}

	now := time.Now().UTC()
	staleAfter := 15 * time.Minute
	live := &models.GenerationRecord{UpdatedAt: now.Add(-time.Minute)}
	dead := &models.GenerationRecord{UpdatedAt: now.Add(-time.Hour)}

	if generationAbandoned(live, now, staleAfter) {
		t.Error("a record written a minute ago must not be taken over")
	}
	if !generationAbandoned(dead, now, staleAfter) {
		t.Error("a record silent for an hour must be taken over")
	}
	if !generationAbandoned(nil, now, staleAfter) {
		t.Error("a claim with no active record behind it must be taken over")
	}
}

func TestGenerationAbandoned_WindowBoundary(t *testing.T) {
	now := time.Now().UTC()
	staleAfter := 15 * time.Minute
	cases := []struct {
		age  time.Duration
		want bool
	}{
		{0, false},
		{staleAfter - time.Second, false},
		{staleAfter, true},
		{staleAfter + time.Second, true},
	}
	for _, c := range cases {
		record := &models.GenerationRecord{UpdatedAt: now.Add(-c.age)}
		if got := generationAbandoned(record, now, staleAfter); got != c.want {
			t.Errorf("age=%s: abandoned=%v, want %v", c.age, got, c.want)
		}
	}
}

// fakeProgress mirrors AdvanceGenerationPhase's GREATEST guard.
type fakeProgress struct {
	mu       sync.Mutex
	progress int
}

func (p *fakeProgress) advance(to int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to > p.progress {
		p.progress = to
	}
	return p.progress
}

func TestProgress_MonotoneUnderConcurrentAdvances(t *testing.T) {
	checkpoints := []int{
		progressResearch, progressOutline, progressWriting,
		progressQualityControl, progressValidating, progressUpdating,
		progressSeoAudit, progressImageSelection, 100,
	}
	for run := 0; run < 100; run++ {
		p := &fakeProgress{}
		observed := make(chan int, len(checkpoints)*3)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, c := range checkpoints {
					observed <- p.advance(c)
				}
			}()
		}
		wg.Wait()
		close(observed)

		if p.progress != 100 {
			t.Fatalf("run=%d final progress %d, want 100", run, p.progress)
		}
		for v := range observed {
			if v < 0 || v > 100 {
				t.Fatalf("run=%d observed out-of-range progress %d", run, v)
			}
		}
	}
}

func TestProgress_CheckpointsStrictlyIncrease(t *testing.T) {
	checkpoints := []int{
		progressResearch, progressOutline, progressWriting,
		progressQualityControl, progressValidating, progressUpdating,
		progressSeoAudit, progressImageSelection,
	}
	for i := 1; i < len(checkpoints); i++ {
		if checkpoints[i] <= checkpoints[i-1] {
			t.Fatalf("checkpoint %d (%d) does not increase over %d", i, checkpoints[i], checkpoints[i-1])
		}
	}
	if checkpoints[len(checkpoints)-1] >= 100 {
		t.Fatal("last checkpoint must leave room for completion at 100")
	}
}

func TestResumption_SkipsPhasesAlreadyRun(t *testing.T) {
	cases := []struct {
		status models.GenerationStatus
		phase  string
		skip   bool
	}{
		{models.GenerationStatusPending, PhaseResearch, false},
		{models.GenerationStatusResearching, PhaseResearch, false},
		{models.GenerationStatusOutline, PhaseResearch, true},
		{models.GenerationStatusWriting, PhaseWrite, false},
		{models.GenerationStatusQualityControl, PhaseWrite, true},
		{models.GenerationStatusValidating, PhaseQualityControl, true},
		{models.GenerationStatusValidating, PhaseValidation, false},
		{models.GenerationStatusUpdating, PhaseValidation, true},
		{models.GenerationStatusUpdating, PhaseFinalize, false},
	}
	for _, c := range cases {
		got := statusRank[c.status] > phaseDoneRank[c.phase]
		if got != c.skip {
			t.Errorf("status=%s phase=%s: skip=%v, want %v", c.status, c.phase, got, c.skip)
		}
	}
}

func TestPhaseOrderAndLookup(t *testing.T) {
	for i, phase := range phaseOrder {
		if got := phaseIndex(phase); got != i {
			t.Errorf("phaseIndex(%q) = %d, want %d", phase, got, i)
		}
		if !IsKnownPhase(phase) {
			t.Errorf("IsKnownPhase(%q) = false", phase)
		}
	}
	if IsKnownPhase("publish") {
		t.Error("unknown phase accepted")
	}
	if IsKnownPhase(SubPhaseOutline) {
		t.Error("sub-phase labels are not resumption points")
	}
}

func TestCollectCorrections_FlattensBothArtifacts(t *testing.T) {
	record := &models.GenerationRecord{}
	if _, err := putArtifact(record, PhaseQualityControl, aiclient.CritiqueResult{
		Issues: []aiclient.CritiqueIssue{
			{Message: "intro buries the point", Suggestion: "lead with the answer"},
			{Message: "second section repeats the first"},
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := putArtifact(record, PhaseValidation, aiclient.ValidationResult{
		Issues: []aiclient.ValidationIssue{
			{Problem: "claims 2019 study", Correction: "the study is from 2021"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	corrections := collectCorrections(record)
	if len(corrections) != 3 {
		t.Fatalf("expected 3 corrections, got %d: %v", len(corrections), corrections)
	}
	if corrections[0] != "intro buries the point (lead with the answer)" {
		t.Errorf("unexpected first correction: %q", corrections[0])
	}
	if corrections[1] != "second section repeats the first" {
		t.Errorf("suggestion-less issue mangled: %q", corrections[1])
	}
	if corrections[2] != "claims 2019 study (the study is from 2021)" {
		t.Errorf("unexpected validation correction: %q", corrections[2])
	}
}

func TestCollectCorrections_EmptyBag(t *testing.T) {
	if got := collectCorrections(&models.GenerationRecord{}); len(got) != 0 {
		t.Fatalf("expected no corrections, got %v", got)
	}
}

func TestLoadFinalDraft(t *testing.T) {
	record := &models.GenerationRecord{ID: 7}
	if _, err := loadFinalDraft(record); err == nil {
		t.Fatal("expected error when draft artifact is missing")
	}

	if _, err := putArtifact(record, PhaseWrite, draftArtifact{
		Title:           "Composting Basics",
		Markdown:        "Composting turns kitchen scraps into soil. Start with a simple bin.",
		MetaDescription: "A beginner guide to composting.",
	}); err != nil {
		t.Fatal(err)
	}
	final, err := loadFinalDraft(record)
	if err != nil {
		t.Fatal(err)
	}
	if final.WordCount != 11 {
		t.Errorf("word count = %d, want 11", final.WordCount)
	}
	if final.SeoScore != 0 || final.CoverImageURL != "" {
		t.Error("audit fields should be zero before the audit phase runs")
	}

	if _, err := putArtifact(record, PhaseFinalize, finalizeArtifact{
		Report:        seo.Report{Score: 88},
		CoverImageURL: "https://cdn.example.com/covers/7/a.jpg",
	}); err != nil {
		t.Fatal(err)
	}
	final, err = loadFinalDraft(record)
	if err != nil {
		t.Fatal(err)
	}
	if final.SeoScore != 88 {
		t.Errorf("seo score = %d, want 88", final.SeoScore)
	}
	if final.CoverImageURL != "https://cdn.example.com/covers/7/a.jpg" {
		t.Errorf("unexpected cover image: %q", final.CoverImageURL)
	}
}

func TestFailureIsRefundable(t *testing.T) {
	if !failureIsRefundable(&models.GenerationRecord{}) {
		t.Error("a run that never drafted must refund its credit")
	}

	corrupt := &models.GenerationRecord{Artifacts: models.ArtifactBag{PhaseWrite: json.RawMessage(`{`)}}
	if !failureIsRefundable(corrupt) {
		t.Error("a corrupt draft artifact counts as no draft")
	}

	empty := &models.GenerationRecord{}
	if _, err := putArtifact(empty, PhaseWrite, draftArtifact{Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if !failureIsRefundable(empty) {
		t.Error("a draft without body text is not billable")
	}

	drafted := &models.GenerationRecord{}
	if _, err := putArtifact(drafted, PhaseWrite, draftArtifact{Markdown: "Some body."}); err != nil {
		t.Fatal(err)
	}
	if failureIsRefundable(drafted) {
		t.Error("a run that produced a draft keeps its deduction")
	}
}

func TestMinWordsFor(t *testing.T) {
	cases := []struct {
		target int
		want   int
	}{
		{0, 0},
		{-1, 0},
		{400, 300},
		{600, 300},
		{1200, 600},
		{2000, 1000},
	}
	for _, c := range cases {
		project := &models.Project{TargetWordCount: c.target}
		if got := minWordsFor(project); got != c.want {
			t.Errorf("minWordsFor(target=%d) = %d, want %d", c.target, got, c.want)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	if got := canonicalURL("https://example.com/", "my-post"); got != "https://example.com/blog/my-post" {
		t.Errorf("unexpected url %q", got)
	}
	if got := canonicalURL("https://example.com", "my-post"); got != "https://example.com/blog/my-post" {
		t.Errorf("unexpected url %q", got)
	}
	if got := canonicalURL("", "my-post"); got != "" {
		t.Errorf("expected empty url without a base, got %q", got)
	}
}

func TestClaimResultString(t *testing.T) {
	if Claimed.String() != "claimed" || AlreadyClaimed.String() != "already_claimed" || InvalidState.String() != "invalid_state" {
		t.Error("claim result labels changed")
	}
}
