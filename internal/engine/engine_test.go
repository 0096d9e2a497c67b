package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"socialpress/internal/campaign"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
	"socialpress/internal/provider"
	"socialpress/internal/store"
)

type stubFetcher struct {
	items []campaign.Item
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, c *campaign.Campaign) ([]campaign.Item, error) {
	return s.items, s.err
}

func (s *stubFetcher) TestConnection(ctx context.Context) error { return nil }

type stubTranslator struct {
	err error
}

func (s *stubTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return targetLang + ":" + text, nil
}

func (s *stubTranslator) TestConnection(ctx context.Context) error { return nil }

type fixture struct {
	store    *store.Store
	pipeline *Pipeline
	fetcher  *stubFetcher
	trans    *stubTranslator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{store: st, fetcher: &stubFetcher{}, trans: &stubTranslator{}}

	fetchers := provider.NewRegistry[provider.Fetcher]()
	fetchers.Register(provider.Descriptor[provider.Fetcher]{
		Type: "stub",
		New:  func(settings map[string]string) provider.Fetcher { return f.fetcher },
	})
	translators := provider.NewRegistry[provider.Translator]()
	translators.Register(provider.Descriptor[provider.Translator]{
		Type: "stub",
		New:  func(settings map[string]string) provider.Translator { return f.trans },
	})

	f.pipeline = New(st, fetchers, translators, logging.NewNop())
	return f
}

func (f *fixture) createCampaign(t *testing.T, mutate func(*campaign.Campaign)) int64 {
	t.Helper()
	c := &campaign.Campaign{
		Title:       "Test",
		Status:      campaign.StatusActive,
		FetcherType: "stub",
		Schedule:    campaign.Schedule{Type: campaign.ScheduleManual},
	}
	if mutate != nil {
		mutate(c)
	}
	id, err := f.store.CreateCampaign(c)
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	return id
}

func items(urls ...string) []campaign.Item {
	out := make([]campaign.Item, len(urls))
	for i, u := range urls {
		out[i] = campaign.Item{Title: "Item", Content: "Body", URL: u}
	}
	return out
}

func TestProcessUnknownCampaign(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Process(context.Background(), 42)
	if !errs.IsKind(err, errs.InvalidCampaign) {
		t.Errorf("expected invalid_campaign, got %v", err)
	}
}

func TestProcessInactiveCampaign(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign(t, func(c *campaign.Campaign) { c.Status = campaign.StatusPaused })

	_, err := f.pipeline.Process(context.Background(), id)
	if !errs.IsKind(err, errs.InactiveCampaign) {
		t.Errorf("expected inactive_campaign, got %v", err)
	}
}

func TestProcessUnknownFetcherType(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign(t, func(c *campaign.Campaign) { c.FetcherType = "missing" })

	_, err := f.pipeline.Process(context.Background(), id)
	if !errs.IsKind(err, errs.ProviderNotFound) {
		t.Errorf("expected provider_not_found, got %v", err)
	}
}

func TestProcessPublishes(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1", "https://a.com/2")
	id := f.createCampaign(t, func(c *campaign.Campaign) { c.Template = "{title}: {content}" })

	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 2 || result.Published != 2 || result.Duplicates != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	artifacts, _ := f.store.ListArtifacts(id)
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	for _, a := range artifacts {
		if a.Content != "Item: Body" {
			t.Errorf("template not applied, got %q", a.Content)
		}
	}

	c, _ := f.store.GetCampaign(id)
	if c.LastRun == nil {
		t.Error("last run should be set after a successful run")
	}
	if c.LastError != nil {
		t.Errorf("last error should be clear, got %v", *c.LastError)
	}
}

func TestProcessSkipsDuplicatesOnSecondRun(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1", "https://a.com/2")
	id := f.createCampaign(t, nil)

	if _, err := f.pipeline.Process(context.Background(), id); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	f.fetcher.items = items("https://a.com/1", "https://a.com/2", "https://a.com/3")
	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.Published != 1 {
		t.Errorf("expected 1 new publication, got %d", result.Published)
	}
	if result.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", result.Duplicates)
	}

	artifacts, _ := f.store.ListArtifacts(id)
	if len(artifacts) != 3 {
		t.Errorf("expected 3 artifacts total, got %d", len(artifacts))
	}
}

func TestProcessFetchErrorRecordsFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errs.New(errs.FetchError, "rate limited")
	id := f.createCampaign(t, nil)

	_, err := f.pipeline.Process(context.Background(), id)
	if !errs.IsKind(err, errs.FetchError) {
		t.Fatalf("expected fetch_error, got %v", err)
	}

	c, _ := f.store.GetCampaign(id)
	if c.LastRun != nil {
		t.Error("failed fetch should not advance last run")
	}
	if c.LastError == nil || !strings.Contains(*c.LastError, "rate limited") {
		t.Errorf("expected recorded error, got %v", c.LastError)
	}
}

func TestProcessNoItemsIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = nil
	id := f.createCampaign(t, nil)

	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("zero items should not be an error: %v", err)
	}
	if result.Fetched != 0 || result.Published != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	c, _ := f.store.GetCampaign(id)
	if c.LastRun == nil {
		t.Error("empty run should still advance last run")
	}
}

func TestProcessAppliesFilters(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = []campaign.Item{
		{Title: "Go news", Content: "about go", URL: "https://a.com/1"},
		{Title: "Other", Content: "nothing here", URL: "https://a.com/2"},
	}
	id := f.createCampaign(t, func(c *campaign.Campaign) {
		c.Filters = []campaign.Filter{{Type: campaign.FilterKeyword, Value: "go"}}
	})

	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Filtered != 1 || result.Published != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestProcessTranslates(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1")
	id := f.createCampaign(t, func(c *campaign.Campaign) {
		c.EnableTranslation = true
		c.TranslatorType = "stub"
		c.TargetLanguage = "es"
	})

	if _, err := f.pipeline.Process(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	artifacts, _ := f.store.ListArtifacts(id)
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].Title != "es:Item" {
		t.Errorf("title not translated: %q", artifacts[0].Title)
	}
	if artifacts[0].Content != "es:Body" {
		t.Errorf("content not translated: %q", artifacts[0].Content)
	}
}

func TestProcessTranslationFailureKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1")
	f.trans.err = errors.New("quota exceeded")
	id := f.createCampaign(t, func(c *campaign.Campaign) {
		c.EnableTranslation = true
		c.TranslatorType = "stub"
		c.TargetLanguage = "es"
	})

	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Published != 1 {
		t.Errorf("item should still publish with original text, got %+v", result)
	}

	artifacts, _ := f.store.ListArtifacts(id)
	if artifacts[0].Content != "Body" {
		t.Errorf("expected original content, got %q", artifacts[0].Content)
	}
}

func TestProcessTranslationWithoutTargetLanguageFailsItemsOnly(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1", "https://a.com/2")
	id := f.createCampaign(t, func(c *campaign.Campaign) {
		c.EnableTranslation = true
		c.TranslatorType = "stub"
	})

	result, err := f.pipeline.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("misconfigured translation should not abort the run: %v", err)
	}
	if result.Failed != 2 || result.Published != 0 {
		t.Errorf("each item should fail individually, got %+v", result)
	}

	artifacts, _ := f.store.ListArtifacts(id)
	if len(artifacts) != 0 {
		t.Errorf("expected no artifacts, got %d", len(artifacts))
	}

	c, _ := f.store.GetCampaign(id)
	if c.LastRun == nil {
		t.Error("a run with only item failures should still advance last run")
	}
}

func TestProcessEmptyBatchLogMessages(t *testing.T) {
	f := newFixture(t)
	f.pipeline.logger = logging.New(f.store, logging.LevelInfo)

	empty := f.createCampaign(t, nil)
	if _, err := f.pipeline.Process(context.Background(), empty); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.fetcher.items = items("https://a.com/1")
	filtered := f.createCampaign(t, func(c *campaign.Campaign) {
		c.Filters = []campaign.Filter{{Type: campaign.FilterKeyword, Value: "nomatch"}}
	})
	if _, err := f.pipeline.Process(context.Background(), filtered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := f.store.GetLogs(store.LogQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Message] = true
	}
	if !seen["no items found"] {
		t.Error("zero fetched items should log 'no items found'")
	}
	if !seen["all items filtered"] {
		t.Error("a fully filtered batch should log 'all items filtered'")
	}
}

func TestProcessDeterministicClock(t *testing.T) {
	f := newFixture(t)
	f.fetcher.items = items("https://a.com/1")
	fixed := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	f.pipeline.now = func() time.Time { return fixed }
	id := f.createCampaign(t, nil)

	if _, err := f.pipeline.Process(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ := f.store.GetCampaign(id)
	if c.LastRun == nil || !c.LastRun.Equal(fixed) {
		t.Errorf("expected last run %v, got %v", fixed, c.LastRun)
	}
}
